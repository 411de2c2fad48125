package domain

import "fmt"

// StructuredRecord is one matching row from an allow-listed table.
type StructuredRecord struct {
	SourceTable string            `json:"source_table"`
	PrimaryKey  string            `json:"primary_key"`
	Fields      map[string]string `json:"fields"`
	// Relevance is the match-quality heuristic in (0,1]:
	// exact > prefix > substring.
	Relevance float64 `json:"relevance"`
}

// DocumentChunk is one semantic hit from the vector index, similarity in [0,1].
type DocumentChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	URL        string  `json:"url,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

type ContextKind string

const (
	KindStructured ContextKind = "structured"
	KindSemantic   ContextKind = "semantic"
)

// ContextEntry is one fused grounding item handed to the composer.
type ContextEntry struct {
	Kind      ContextKind `json:"kind"`
	Key       string      `json:"key"`
	Content   string      `json:"content"`
	Label     string      `json:"label"`
	URL       string      `json:"url,omitempty"`
	Score     float64     `json:"score"`
	Truncated bool        `json:"truncated"`
}

// FusedContext is the bounded, ranked, deduplicated grounding for one turn.
// Entries are ordered by score descending; structured entries win ties.
type FusedContext struct {
	Entries []ContextEntry `json:"entries"`
	Budget  int            `json:"budget"`
}

func (f FusedContext) Empty() bool {
	return len(f.Entries) == 0
}

func (f FusedContext) Truncated() bool {
	for _, e := range f.Entries {
		if e.Truncated {
			return true
		}
	}
	return false
}

// Size is the total serialized content size in characters; never exceeds
// Budget for a fusion-produced context.
func (f FusedContext) Size() int {
	total := 0
	for _, e := range f.Entries {
		total += len(e.Content)
	}
	return total
}

func StructuredKey(table, pk string) string {
	return fmt.Sprintf("%s:%s", table, pk)
}

func ChunkKey(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", documentID, chunkIndex)
}

package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// Fuser merges the two retrieval paths into one bounded context.
//
// Structured rows are exact facts, so they carry an authority base score
// scaled by the match-quality heuristic; semantic chunks keep their raw
// similarity. The relative weighting is a tunable, not a law.
type Fuser struct {
	budget         int
	structuredBase float64
}

func NewFuser(budget int, structuredBase float64) *Fuser {
	if budget <= 0 {
		budget = 4000
	}
	if structuredBase <= 0 || structuredBase > 1 {
		structuredBase = 0.95
	}
	return &Fuser{
		budget:         budget,
		structuredBase: structuredBase,
	}
}

// Fuse normalizes, deduplicates, ranks, and truncates. Either input may be
// empty; an empty fused context is a valid "no grounding found" outcome.
func (f *Fuser) Fuse(records []domain.StructuredRecord, chunks []domain.DocumentChunk) domain.FusedContext {
	candidates := make([]domain.ContextEntry, 0, len(records)+len(chunks))
	for _, rec := range records {
		candidates = append(candidates, structuredEntry(rec, f.structuredBase))
	}
	for _, chunk := range chunks {
		candidates = append(candidates, semanticEntry(chunk))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		// Structured facts win ties: they are exact.
		if a.Kind != b.Kind {
			return a.Kind == domain.KindStructured
		}
		return a.Key < b.Key
	})

	// Dedup after ranking so the first instance seen is the one to keep.
	candidates = dedupe(candidates)

	fused := domain.FusedContext{Budget: f.budget}
	remaining := f.budget
	for i, entry := range candidates {
		if len(entry.Content) <= remaining {
			fused.Entries = append(fused.Entries, entry)
			remaining -= len(entry.Content)
			continue
		}
		// Only the top-ranked entry may be truncated to fit; everything
		// else is either whole or left out.
		if i == 0 {
			entry.Content = entry.Content[:remaining]
			entry.Truncated = true
			fused.Entries = append(fused.Entries, entry)
			remaining = 0
		}
	}
	return fused
}

// dedupe expects score-descending input. It keeps the first (highest-scoring)
// instance per identity key and drops semantic chunks whose text overlaps an
// already-kept chunk of the same document.
func dedupe(entries []domain.ContextEntry) []domain.ContextEntry {
	seen := make(map[string]struct{}, len(entries))
	kept := make([]domain.ContextEntry, 0, len(entries))

	for _, entry := range entries {
		if _, dup := seen[entry.Key]; dup {
			continue
		}
		seen[entry.Key] = struct{}{}
		if entry.Kind == domain.KindSemantic && overlapsKept(kept, entry) {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// overlapsKept reports whether a chunk repeats the text span of an
// already-kept chunk from the same document.
func overlapsKept(kept []domain.ContextEntry, entry domain.ContextEntry) bool {
	docID := documentOf(entry.Key)
	for _, prev := range kept {
		if prev.Kind != domain.KindSemantic || documentOf(prev.Key) != docID {
			continue
		}
		if strings.Contains(prev.Content, entry.Content) || strings.Contains(entry.Content, prev.Content) {
			return true
		}
	}
	return false
}

func documentOf(chunkKey string) string {
	if idx := strings.LastIndex(chunkKey, ":"); idx >= 0 {
		return chunkKey[:idx]
	}
	return chunkKey
}

func structuredEntry(rec domain.StructuredRecord, base float64) domain.ContextEntry {
	relevance := rec.Relevance
	if relevance <= 0 || relevance > 1 {
		relevance = 1
	}
	return domain.ContextEntry{
		Kind:    domain.KindStructured,
		Key:     domain.StructuredKey(rec.SourceTable, rec.PrimaryKey),
		Content: renderRecord(rec),
		Label:   fmt.Sprintf("%s %s", rec.SourceTable, rec.PrimaryKey),
		URL:     rec.Fields["product_url"],
		Score:   base * relevance,
	}
}

func semanticEntry(chunk domain.DocumentChunk) domain.ContextEntry {
	label := chunk.Title
	if label == "" {
		label = chunk.DocumentID
	}
	return domain.ContextEntry{
		Kind:    domain.KindSemantic,
		Key:     domain.ChunkKey(chunk.DocumentID, chunk.ChunkIndex),
		Content: chunk.Text,
		Label:   label,
		URL:     chunk.URL,
		Score:   chunk.Similarity,
	}
}

// renderRecord serializes a row as stable field=value pairs so prompts and
// dedup behavior are deterministic.
func renderRecord(rec domain.StructuredRecord) string {
	fields := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString(rec.SourceTable)
	for _, name := range fields {
		value := strings.TrimSpace(rec.Fields[name])
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, " %s=%s", name, value)
	}
	return b.String()
}

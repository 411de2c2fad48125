package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/partwise/parts-assistant/internal/core/domain"
	"github.com/partwise/parts-assistant/internal/core/ports"
)

// SemanticRetriever embeds the resolved query and searches the vector index,
// discarding hits below the similarity floor as noise.
type SemanticRetriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	topK     int
	floor    float64
}

func NewSemanticRetriever(embedder ports.Embedder, index ports.VectorIndex, topK int, floor float64) *SemanticRetriever {
	if topK <= 0 {
		topK = 10
	}
	if floor <= 0 || floor >= 1 {
		floor = 0.3
	}
	return &SemanticRetriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		floor:    floor,
	}
}

// Retrieve returns chunks ranked by similarity descending. An embedding
// failure surfaces as EmbeddingUnavailable so the caller can degrade the path
// instead of failing the turn.
func (r *SemanticRetriever) Retrieve(ctx context.Context, intent domain.QueryIntent) ([]domain.DocumentChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, intent.ResolvedText)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", err)
	}
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", fmt.Errorf("empty embedding"))
	}

	chunks, err := r.index.Search(ctx, vector, r.topK, intent.CategoryHint)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	kept := chunks[:0]
	for _, chunk := range chunks {
		if chunk.Similarity >= r.floor {
			kept = append(kept, chunk)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Similarity > kept[j].Similarity
	})
	return kept, nil
}

package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

type fakeEmbedder struct {
	queryVector []float32
	err         error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.queryVector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.queryVector, f.err
}

type fakeVectorIndex struct {
	chunks       []domain.DocumentChunk
	err          error
	lastCategory string
}

func (f *fakeVectorIndex) IndexChunks(context.Context, *domain.Document, []string, [][]float32) error {
	return f.err
}

func (f *fakeVectorIndex) Search(_ context.Context, _ []float32, _ int, category string) ([]domain.DocumentChunk, error) {
	f.lastCategory = category
	return f.chunks, f.err
}

func TestRetrieveFiltersBelowFloorAndSortsDescending(t *testing.T) {
	index := &fakeVectorIndex{chunks: []domain.DocumentChunk{
		{DocumentID: "doc-1", ChunkIndex: 0, Similarity: 0.4},
		{DocumentID: "doc-2", ChunkIndex: 0, Similarity: 0.1},
		{DocumentID: "doc-3", ChunkIndex: 0, Similarity: 0.9},
	}}
	r := NewSemanticRetriever(&fakeEmbedder{queryVector: []float32{0.1}}, index, 10, 0.3)

	chunks, err := r.Retrieve(context.Background(), domain.QueryIntent{ResolvedText: "dishwasher won't drain"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks above the floor, got %d", len(chunks))
	}
	if chunks[0].DocumentID != "doc-3" || chunks[1].DocumentID != "doc-1" {
		t.Fatalf("expected similarity-descending order, got %+v", chunks)
	}
}

func TestRetrievePassesCategoryHint(t *testing.T) {
	index := &fakeVectorIndex{}
	r := NewSemanticRetriever(&fakeEmbedder{queryVector: []float32{0.1}}, index, 10, 0.3)

	if _, err := r.Retrieve(context.Background(), domain.QueryIntent{ResolvedText: "x", CategoryHint: "repair-guide"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.lastCategory != "repair-guide" {
		t.Fatalf("expected category hint to reach the index, got %q", index.lastCategory)
	}
}

func TestRetrieveEmbedFailureIsEmbeddingUnavailable(t *testing.T) {
	r := NewSemanticRetriever(&fakeEmbedder{err: errors.New("connection refused")}, &fakeVectorIndex{}, 10, 0.3)

	_, err := r.Retrieve(context.Background(), domain.QueryIntent{ResolvedText: "x"})
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding unavailable, got %v", err)
	}
}

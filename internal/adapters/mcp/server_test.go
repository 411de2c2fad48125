package mcpadapter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/partwise/parts-assistant/internal/core/domain"
	"github.com/partwise/parts-assistant/internal/core/usecase"
)

func toolCatalog() domain.Catalog {
	return domain.Catalog{
		Tables: []domain.Table{
			{
				Name:       "parts",
				PrimaryKey: "part_id",
				Columns: []domain.Column{
					{Name: "part_id", Kind: domain.ColumnKey},
					{Name: "mpn_id", Kind: domain.ColumnKey},
					{Name: "part_name", Kind: domain.ColumnText},
					{Name: "brand", Kind: domain.ColumnText},
					{Name: "part_price", Kind: domain.ColumnKey},
				},
			},
		},
	}
}

type structuredStoreFake struct {
	records   []domain.StructuredRecord
	err       error
	lastQuery domain.StructuredQuery
}

func (f *structuredStoreFake) Search(_ context.Context, query domain.StructuredQuery) ([]domain.StructuredRecord, error) {
	f.lastQuery = query
	return f.records, f.err
}

type embedderFake struct {
	vector []float32
	err    error
}

func (f embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

func (f embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type vectorIndexFake struct {
	chunks       []domain.DocumentChunk
	err          error
	lastCategory string
}

func (f *vectorIndexFake) IndexChunks(context.Context, *domain.Document, []string, [][]float32) error {
	return nil
}

func (f *vectorIndexFake) Search(_ context.Context, _ []float32, _ int, category string) ([]domain.DocumentChunk, error) {
	f.lastCategory = category
	return f.chunks, f.err
}

func newToolServer(store *structuredStoreFake, index *vectorIndexFake) *Server {
	catalog := toolCatalog()
	return NewServer(
		usecase.NewClassifier(catalog, 3, 0.5),
		usecase.NewQueryBuilder(catalog, 20),
		store,
		usecase.NewSemanticRetriever(embedderFake{vector: []float32{0.1, 0.2}}, index, 10, 0.3),
		nil,
	)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatalf("tool result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestSearchPartsReturnsRecords(t *testing.T) {
	store := &structuredStoreFake{records: []domain.StructuredRecord{{
		SourceTable: "parts",
		PrimaryKey:  "PS11752778",
		Fields:      map[string]string{"part_name": "Door Shelf Bin", "part_price": "36.08"},
		Relevance:   1.0,
	}}}
	srv := newToolServer(store, &vectorIndexFake{})

	result, err := srv.handleSearchParts(context.Background(), callRequest("search_parts", map[string]any{
		"query": "price of PS11752778",
	}))
	if err != nil {
		t.Fatalf("handleSearchParts() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	if store.lastQuery.Table != "parts" {
		t.Fatalf("expected parts query, got %q", store.lastQuery.Table)
	}

	var payload struct {
		Records []domain.StructuredRecord `json:"records"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("decode tool payload: %v", err)
	}
	if len(payload.Records) != 1 || payload.Records[0].PrimaryKey != "PS11752778" {
		t.Fatalf("unexpected records %+v", payload.Records)
	}
}

func TestSearchPartsRejectsUnsearchableQuery(t *testing.T) {
	srv := newToolServer(&structuredStoreFake{}, &vectorIndexFake{})

	result, err := srv.handleSearchParts(context.Background(), callRequest("search_parts", map[string]any{
		"query": "tell me a joke",
	}))
	if err != nil {
		t.Fatalf("handleSearchParts() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for unsearchable query")
	}
}

func TestSearchPartsRequiresQueryArgument(t *testing.T) {
	srv := newToolServer(&structuredStoreFake{}, &vectorIndexFake{})

	result, err := srv.handleSearchParts(context.Background(), callRequest("search_parts", map[string]any{}))
	if err != nil {
		t.Fatalf("handleSearchParts() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing query argument")
	}
}

func TestSearchGuidesFiltersAndLimits(t *testing.T) {
	index := &vectorIndexFake{chunks: []domain.DocumentChunk{
		{ChunkID: "d1:0", DocumentID: "d1", Title: "Ice maker repair", Similarity: 0.9},
		{ChunkID: "d1:1", DocumentID: "d1", Title: "Ice maker repair", Similarity: 0.7},
		{ChunkID: "d2:0", DocumentID: "d2", Title: "Defrost basics", Similarity: 0.5},
	}}
	srv := newToolServer(&structuredStoreFake{}, index)

	result, err := srv.handleSearchGuides(context.Background(), callRequest("search_guides", map[string]any{
		"query":    "ice maker not working",
		"category": "repair-guide",
		"limit":    2,
	}))
	if err != nil {
		t.Fatalf("handleSearchGuides() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if index.lastCategory != "repair-guide" {
		t.Fatalf("expected category forwarded, got %q", index.lastCategory)
	}

	var payload struct {
		Chunks []domain.DocumentChunk `json:"chunks"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("decode tool payload: %v", err)
	}
	if len(payload.Chunks) != 2 {
		t.Fatalf("expected limit applied, got %d chunks", len(payload.Chunks))
	}
	if payload.Chunks[0].Similarity < payload.Chunks[1].Similarity {
		t.Fatalf("expected chunks ordered by similarity")
	}
}

func TestSearchGuidesSurfacesEmbedderOutage(t *testing.T) {
	catalog := toolCatalog()
	srv := NewServer(
		usecase.NewClassifier(catalog, 3, 0.5),
		usecase.NewQueryBuilder(catalog, 20),
		&structuredStoreFake{},
		usecase.NewSemanticRetriever(embedderFake{err: context.DeadlineExceeded}, &vectorIndexFake{}, 10, 0.3),
		nil,
	)

	result, err := srv.handleSearchGuides(context.Background(), callRequest("search_guides", map[string]any{
		"query": "ice maker not working",
	}))
	if err != nil {
		t.Fatalf("handleSearchGuides() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error when embedding is unavailable")
	}
	if !strings.Contains(resultText(t, result), "embed") {
		t.Fatalf("expected embedding failure message, got %s", resultText(t, result))
	}
}

func TestServerRegistersBothTools(t *testing.T) {
	srv := newToolServer(&structuredStoreFake{}, &vectorIndexFake{})
	if srv.mcpServer() == nil {
		t.Fatalf("expected an initialized MCP server")
	}
}

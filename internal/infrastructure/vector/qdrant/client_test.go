package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

func TestIndexChunksEnsuresCollectionAndUpserts(t *testing.T) {
	var ensured, upserted bool
	var points []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/guides":
			ensured = true
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/guides/points":
			upserted = true
			var payload struct {
				Points []map[string]any `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode upsert: %v", err)
			}
			points = payload.Points
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "guides")
	doc := &domain.Document{ID: "doc-1", Title: "Drain guide", Category: "repair-guide", URL: "https://example.com/g"}
	err := client.IndexChunks(context.Background(), doc, []string{"chunk a", "chunk b"}, [][]float32{{0.1}, {0.2}})
	if err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if !ensured || !upserted {
		t.Fatalf("expected ensure+upsert, got ensured=%v upserted=%v", ensured, upserted)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	payload := points[0]["payload"].(map[string]any)
	if payload["category"] != "repair-guide" || payload["text"] != "chunk a" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSearchAppliesCategoryFilterAndMapsHits(t *testing.T) {
	var gotFilter map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/guides/points/search" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode search: %v", err)
		}
		gotFilter, _ = payload["filter"].(map[string]any)
		_, _ = w.Write([]byte(`{"result":[
			{"id":"p-1","score":0.92,"payload":{"doc_id":"doc-1","title":"Drain guide","category":"repair-guide","url":"https://example.com/g","chunk_index":2,"text":"check the hose"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "guides")
	chunks, err := client.Search(context.Background(), []float32{0.1, 0.2}, 10, "repair-guide")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotFilter == nil {
		t.Fatal("expected category filter in request")
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.DocumentID != "doc-1" || c.ChunkIndex != 2 || c.Similarity != 0.92 || c.Title != "Drain guide" {
		t.Fatalf("unexpected chunk: %+v", c)
	}
}

func TestSearchWithoutCategoryOmitsFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode search: %v", err)
		}
		if _, ok := payload["filter"]; ok {
			t.Fatal("did not expect a filter")
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "guides")
	if _, err := client.Search(context.Background(), []float32{0.1}, 5, ""); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
}

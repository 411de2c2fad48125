package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/partwise/parts-assistant/internal/infrastructure/resilience"
)

// Client talks to a local Ollama instance over its JSON HTTP API. One client
// serves both the completion and the embedding model.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Completer adapts the generate endpoint to the completion port.
type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.client.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.client.executor.Execute(ctx, "ollama_generate", func(ctx context.Context) error {
		return c.client.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.executor.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embeddings/texts mismatch: %d/%d", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

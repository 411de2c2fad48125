package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Client backs the completion and embedding ports with the OpenAI API.
// Selected over the local Ollama provider via LLM_PROVIDER.
type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel string
}

func New(apiKey, baseURL, chatModel, embedModel string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings/texts mismatch: %d/%d", len(resp.Data), len(texts))
	}

	results := make([][]float32, len(resp.Data))
	for i, datum := range resp.Data {
		results[i] = datum.Embedding
	}
	return results, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

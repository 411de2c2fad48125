package ports

import (
	"context"
	"io"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// TurnService is the inbound contract for conversational turns. Reset wipes a
// session's history so the next turn starts fresh.
type TurnService interface {
	HandleTurn(ctx context.Context, sessionID, userText string) (*domain.TurnResult, error)
	Reset(ctx context.Context, sessionID string) error
}

// DocumentIngestor is the inbound contract for guide/blog upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, title, category, url, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous chunk+embed+index.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

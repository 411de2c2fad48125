package ports

import (
	"context"
	"io"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// StructuredStore executes validated queries against the relational store.
// Absence of rows is a valid empty result, not an error.
type StructuredStore interface {
	Search(ctx context.Context, query domain.StructuredQuery) ([]domain.StructuredRecord, error)
}

// VectorIndex performs k-nearest-neighbor search over document chunks and
// accepts chunk upserts from the indexing pipeline.
type VectorIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, category string) ([]domain.DocumentChunk, error)
}

// Embedder maps text to fixed-length vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CompletionClient is the black-box completion service.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Chunker splits extracted text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// ConversationStore owns per-session turn history. AppendExchange appends the
// user and assistant turns of one exchange atomically and assigns gapless
// strictly increasing indexes; a failed turn appends nothing.
type ConversationStore interface {
	EnsureSession(ctx context.Context, sessionID string) (*domain.Session, error)
	Recent(ctx context.Context, sessionID string, n int) ([]domain.Turn, error)
	AppendExchange(ctx context.Context, sessionID string, user, assistant domain.Turn) error
	Reset(ctx context.Context, sessionID string) error
}

// DocumentRepository persists ingested document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
}

// ObjectStorage stores raw ingested document bodies.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document-ingested events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

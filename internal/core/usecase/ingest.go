package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partwise/parts-assistant/internal/core/domain"
	"github.com/partwise/parts-assistant/internal/core/ports"
)

// knownCategories are the corpus categories the retrieval side understands.
var knownCategories = map[string]struct{}{
	"repair-guide": {},
	"blog":         {},
}

// IngestDocumentUseCase accepts a guide or blog post, stores the raw body,
// records metadata, and hands the document to the async indexing pipeline.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

var _ ports.DocumentIngestor = (*IngestDocumentUseCase)(nil)

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	title, category, url, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("title is required"))
	}
	if _, ok := knownCategories[category]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("unknown category %q", category))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeTitle(title))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Title:       title,
		Category:    category,
		URL:         url,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

func sanitizeTitle(title string) string {
	s := strings.ToLower(title)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	s = strings.Trim(s, "_")
	if s == "" {
		return "document"
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

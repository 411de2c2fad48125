package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrClassificationAmbiguous = errors.New("classification ambiguous")
	ErrSchemaViolation         = errors.New("schema violation")
	ErrEmbeddingUnavailable    = errors.New("embedding service unavailable")
	ErrCompletionFailure       = errors.New("completion service failure")
	ErrDocumentNotFound        = errors.New("document not found")
	ErrSessionNotFound         = errors.New("session not found")
	ErrTemporary               = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

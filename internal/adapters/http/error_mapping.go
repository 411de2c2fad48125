package httpadapter

import (
	"net/http"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// Wording shown when the answering backend is down. Never leaks the upstream
// error to the chat user.
const completionUnavailableMessage = "The assistant is having trouble answering right now. Please try again in a moment."

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSchemaViolation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrCompletionFailure):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func clientMessage(err error) string {
	if domain.IsKind(err, domain.ErrCompletionFailure) {
		return completionUnavailableMessage
	}
	return err.Error()
}

func errorLabel(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrSchemaViolation):
		return "schema_violation"
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case domain.IsKind(err, domain.ErrCompletionFailure):
		return "completion_failure"
	case domain.IsKind(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}

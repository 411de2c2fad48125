package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/partwise/parts-assistant/internal/config"
	"github.com/partwise/parts-assistant/internal/core/domain"
	"github.com/partwise/parts-assistant/internal/core/usecase"
	"github.com/partwise/parts-assistant/internal/observability/metrics"
)

type turnFake struct {
	result *domain.TurnResult
	err    error

	resetErr    error
	lastSession string
	lastText    string
	turnCalls   int
	resetCalls  int
}

func (f *turnFake) HandleTurn(_ context.Context, sessionID, userText string) (*domain.TurnResult, error) {
	f.turnCalls++
	f.lastSession = sessionID
	f.lastText = userText
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.TurnResult{SessionID: sessionID, Answer: "ok"}, nil
}

func (f *turnFake) Reset(_ context.Context, sessionID string) error {
	f.resetCalls++
	f.lastSession = sessionID
	return f.resetErr
}

type ingestFake struct {
	doc *domain.Document
	err error

	lastTitle    string
	lastCategory string
}

func (f *ingestFake) Upload(_ context.Context, title, category, _, _ string, _ io.Reader) (*domain.Document, error) {
	f.lastTitle = title
	f.lastCategory = category
	if f.err != nil {
		return nil, f.err
	}
	if f.doc != nil {
		return f.doc, nil
	}
	return &domain.Document{ID: "doc-1", Title: title, Category: category, Status: domain.StatusUploaded}, nil
}

type docsFake struct {
	doc *domain.Document
	err error
}

func (f *docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.doc != nil {
		return f.doc, nil
	}
	return &domain.Document{ID: id, Title: "ice maker guide", Status: domain.StatusReady}, nil
}

func newTestHandler(cfg config.Config, turn *turnFake, ingest *ingestFake, docs *docsFake) http.Handler {
	if turn == nil {
		turn = &turnFake{}
	}
	if ingest == nil {
		ingest = &ingestFake{}
	}
	if docs == nil {
		docs = &docsFake{}
	}
	return NewRouter(cfg, turn, ingest, docs, metrics.NewHTTPServerMetrics("test"), nil).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestChatTurnReturnsAnswerWithSources(t *testing.T) {
	turn := &turnFake{result: &domain.TurnResult{
		SessionID: "s-1",
		Answer:    "The WP8544771 heating element costs $45.20.",
		Grounded:  true,
		Sources:   []domain.Source{{Kind: domain.KindStructured, Label: "parts:WP8544771"}},
	}}
	handler := newTestHandler(config.Config{}, turn, nil, nil)

	res := postJSON(t, handler, "/v1/chat/turn", map[string]string{
		"session_id": "s-1",
		"text":       "how much is WP8544771?",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var got domain.TurnResult
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Answer != turn.result.Answer {
		t.Fatalf("unexpected answer %q", got.Answer)
	}
	if len(got.Sources) != 1 || got.Sources[0].Kind != domain.KindStructured {
		t.Fatalf("expected structured source, got %+v", got.Sources)
	}
	if turn.lastText != "how much is WP8544771?" {
		t.Fatalf("handler passed %q to the use case", turn.lastText)
	}
}

func TestChatTurnRejectsMissingFields(t *testing.T) {
	turn := &turnFake{}
	handler := newTestHandler(config.Config{}, turn, nil, nil)

	res := postJSON(t, handler, "/v1/chat/turn", map[string]string{"session_id": "s-1", "text": "  "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank text, got %d", res.Code)
	}

	res = postJSON(t, handler, "/v1/chat/turn", map[string]string{"text": "hi"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing session, got %d", res.Code)
	}
	if turn.turnCalls != 0 {
		t.Fatalf("use case should not run on invalid input, ran %d times", turn.turnCalls)
	}
}

func TestChatTurnRejectsInvalidJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/turn", bytes.NewReader([]byte("{not json")))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatTurnMapsCompletionFailureTo503(t *testing.T) {
	turn := &turnFake{err: domain.WrapError(domain.ErrCompletionFailure, "complete turn", errors.New("upstream down"))}
	handler := newTestHandler(config.Config{}, turn, nil, nil)

	res := postJSON(t, handler, "/v1/chat/turn", map[string]string{"session_id": "s-1", "text": "hi"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != completionUnavailableMessage {
		t.Fatalf("expected friendly completion message, got %q", resp["error"])
	}
}

func TestChatTurnMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/turn", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestChatResetReturnsIntroMessage(t *testing.T) {
	turn := &turnFake{}
	handler := newTestHandler(config.Config{}, turn, nil, nil)

	res := postJSON(t, handler, "/v1/chat/reset", map[string]string{"session_id": "s-1"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if turn.resetCalls != 1 {
		t.Fatalf("expected one reset call, got %d", turn.resetCalls)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != usecase.IntroMessage {
		t.Fatalf("expected intro message, got %q", resp["message"])
	}
	if resp["session_id"] != "s-1" {
		t.Fatalf("expected session id echoed, got %q", resp["session_id"])
	}
}

func TestChatResetMapsSessionNotFoundTo404(t *testing.T) {
	turn := &turnFake{resetErr: domain.WrapError(domain.ErrSessionNotFound, "reset session", errors.New("id=s-404"))}
	handler := newTestHandler(config.Config{}, turn, nil, nil)

	res := postJSON(t, handler, "/v1/chat/reset", map[string]string{"session_id": "s-404"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

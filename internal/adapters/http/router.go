package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/partwise/parts-assistant/internal/config"
	"github.com/partwise/parts-assistant/internal/core/ports"
	"github.com/partwise/parts-assistant/internal/core/usecase"
	"github.com/partwise/parts-assistant/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	turnUC   ports.TurnService
	ingestUC ports.DocumentIngestor
	docs     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

func NewRouter(
	cfg config.Config,
	turnUC ports.TurnService,
	ingestUC ports.DocumentIngestor,
	docs ports.DocumentReader,
	serverMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		turnUC:         turnUC,
		ingestUC:       ingestUC,
		docs:           docs,
		metrics:        serverMetrics,
		logger:         logger,
		rateLimitRPS:   cfg.RateLimitRPS,
		rateLimitBurst: cfg.RateLimitBurst,
		maxInFlight:    cfg.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat/turn", rt.chatTurn)
	mux.HandleFunc("/v1/chat/reset", rt.chatReset)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.maxInFlight, 100*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Text = strings.TrimSpace(req.Text)
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	start := time.Now()
	result, err := rt.turnUC.HandleTurn(r.Context(), req.SessionID, req.Text)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordTurn(serviceName, errorLabel(err), time.Since(start))
		}
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordTurn(serviceName, "ok", time.Since(start))
		if result.OutOfScope {
			rt.metrics.RecordOutOfScope(serviceName)
		} else {
			rt.metrics.RecordGrounding(serviceName, len(result.Sources), result.ContextChars, result.Grounded, result.Truncated)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) chatReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	if err := rt.turnUC.Reset(r.Context(), req.SessionID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": req.SessionID,
		"message":    usecase.IntroMessage,
	})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = fileHeader.Filename
	}

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		title,
		r.FormValue("category"),
		r.FormValue("url"),
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": clientMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

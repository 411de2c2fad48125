package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	turnsTotal          *prometheus.CounterVec
	turnDuration        *prometheus.HistogramVec
	turnGroundedTotal   *prometheus.CounterVec
	turnUngroundedTotal *prometheus.CounterVec
	turnTruncatedTotal  *prometheus.CounterVec
	turnOutOfScopeTotal *prometheus.CounterVec
	pathDegradedTotal   *prometheus.CounterVec
	fusedEntries        *prometheus.HistogramVec
	fusedContextChars   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pwa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pwa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwa",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total completed conversational turns by status.",
		},
		[]string{"service", "status"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pwa",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	turnGroundedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwa",
			Subsystem: "chat",
			Name:      "grounded_turns_total",
			Help:      "Total turns answered with at least one context entry.",
		},
		[]string{"service"},
	)
	turnUngroundedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwa",
			Subsystem: "chat",
			Name:      "ungrounded_turns_total",
			Help:      "Total turns answered with an empty fused context.",
		},
		[]string{"service"},
	)
	turnTruncatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwa",
			Subsystem: "chat",
			Name:      "truncated_turns_total",
			Help:      "Total turns whose context was cut to fit the budget.",
		},
		[]string{"service"},
	)
	turnOutOfScopeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwa",
			Subsystem: "chat",
			Name:      "out_of_scope_turns_total",
			Help:      "Total turns redirected without a completion call.",
		},
		[]string{"service"},
	)
	pathDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwa",
			Subsystem: "retrieval",
			Name:      "path_degraded_total",
			Help:      "Total retrieval path failures absorbed by degradation.",
		},
		[]string{"service", "path"},
	)
	fusedEntries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pwa",
			Subsystem: "retrieval",
			Name:      "fused_entries",
			Help:      "Distribution of fused context entries per turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	fusedContextChars := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pwa",
			Subsystem: "retrieval",
			Name:      "fused_context_chars",
			Help:      "Distribution of fused context size in characters.",
			Buckets:   []float64{0, 250, 500, 1000, 2000, 3000, 4000},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		turnsTotal,
		turnDuration,
		turnGroundedTotal,
		turnUngroundedTotal,
		turnTruncatedTotal,
		turnOutOfScopeTotal,
		pathDegradedTotal,
		fusedEntries,
		fusedContextChars,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		turnsTotal:          turnsTotal,
		turnDuration:        turnDuration,
		turnGroundedTotal:   turnGroundedTotal,
		turnUngroundedTotal: turnUngroundedTotal,
		turnTruncatedTotal:  turnTruncatedTotal,
		turnOutOfScopeTotal: turnOutOfScopeTotal,
		pathDegradedTotal:   pathDegradedTotal,
		fusedEntries:        fusedEntries,
		fusedContextChars:   fusedContextChars,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordTurn(service, status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.turnsTotal.WithLabelValues(service, status).Inc()
	m.turnDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordGrounding(service string, entryCount, contextChars int, grounded, truncated bool) {
	m.fusedEntries.WithLabelValues(service).Observe(float64(entryCount))
	m.fusedContextChars.WithLabelValues(service).Observe(float64(contextChars))

	if grounded {
		m.turnGroundedTotal.WithLabelValues(service).Inc()
	} else {
		m.turnUngroundedTotal.WithLabelValues(service).Inc()
	}
	if truncated {
		m.turnTruncatedTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordOutOfScope(service string) {
	m.turnOutOfScopeTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordPathDegraded(service, path string) {
	if path == "" {
		path = "unknown"
	}
	m.pathDegradedTotal.WithLabelValues(service, path).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}

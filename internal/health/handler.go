// Package health serves liveness, readiness and engine health endpoints and
// runs the periodic engine probe that feeds the engine_up gauge.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ace-hls-relay/internal/engine"
)

const (
	// HealthTimeout bounds the engine probe made by GET /health.
	HealthTimeout = 5 * time.Second

	// ReadyTimeout bounds the engine probe made by GET /health/ready.
	ReadyTimeout = 2 * time.Second
)

// Status values reported by the health endpoints.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Prober checks that the engine is answering.
type Prober interface {
	CheckEngine(ctx context.Context) (*engine.VersionInfo, error)
}

// Handler serves the health endpoints.
type Handler struct {
	engine  Prober
	log     *slog.Logger
	started time.Time
	now     func() time.Time
	memory  func(ctx context.Context) *MemoryInfo
}

// NewHandler returns a Handler probing eng. Uptime is measured from now.
func NewHandler(eng Prober, log *slog.Logger) *Handler {
	return &Handler{
		engine:  eng,
		log:     log,
		started: time.Now(),
		now:     time.Now,
		memory:  ProcessMemory,
	}
}

// Routes returns a router with /, /ready and /live, for mounting under a
// health prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Health)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// ServiceHealth is the health of one dependency.
type ServiceHealth struct {
	Status  string  `json:"status"`
	Version *string `json:"version"`
	Error   *string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Uptime    float64                  `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
}

// Health reports overall health. The engine being down degrades the service
// but is still answered with 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: h.timestamp(),
		Uptime:    h.uptime(),
		Services:  make(map[string]ServiceHealth, 1),
	}

	info, err := h.engine.CheckEngine(ctx)
	if err != nil {
		msg := err.Error()
		resp.Status = StatusDegraded
		resp.Services["aceStream"] = ServiceHealth{Status: StatusError, Error: &msg}
		h.log.Debug("engine health probe failed", slog.String("error", msg))
	} else {
		version := info.Version
		resp.Services["aceStream"] = ServiceHealth{Status: StatusHealthy, Version: &version}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready answers 200 when the engine responds within ReadyTimeout and 503
// otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ReadyTimeout)
	defer cancel()

	if _, err := h.engine.CheckEngine(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "not ready",
			"timestamp": h.timestamp(),
			"errors":    []string{err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": h.timestamp(),
	})
}

// Live always answers 200 while the process can serve requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": h.timestamp(),
		"uptime":    h.uptime(),
		"memory":    h.memory(r.Context()),
	})
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

func (h *Handler) uptime() float64 {
	return h.now().Sub(h.started).Seconds()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

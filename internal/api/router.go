package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ace-hls-relay/internal/platform/logger"
	"ace-hls-relay/internal/platform/metrics"
)

// NewRouter wires the handler, the health routes and /metrics into a chi
// router. Metrics may be nil.
func NewRouter(h *Handler, health http.Handler, m *metrics.Metrics, log *slog.Logger) *chi.Mux {
	prefix := h.opts.Prefix

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(logger.RequestID)
	r.Use(logger.RequestLogger(log))
	if m != nil {
		r.Use(metrics.RequestMiddleware(m))
	}
	r.Use(corsByPath(h.opts.FrontendURL, func(path string) bool {
		return isPlayerPath(prefix, path)
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route "+r.URL.Path+" not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
	})

	if m != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			m.Handler(func() { m.SetActiveSessions(h.streams.ActiveCount()) }).ServeHTTP(w, r)
		})
	}
	r.Get("/", h.Info)

	routes := func(r chi.Router) {
		r.Mount("/health", health)

		r.Post("/streams/start/{contentId}", h.StartStream)
		r.Post("/streams/stop/{sessionId}", h.StopStream)
		r.Get("/streams/status/{sessionId}", h.StreamStatus)
		r.Get("/streams/active", h.ActiveStreams)

		r.Get("/streams/hls/{sessionId}/manifest.m3u8", h.Manifest)
		r.Get("/streams/proxy/c/{sessionHash}/{segment}", h.Segment)
		r.Get("/streams/direct/{sessionId}", h.Direct)
	}
	if prefix == "" {
		r.Group(routes)
	} else {
		r.Route(prefix, routes)
	}

	return r
}

// isPlayerPath reports whether path is fetched by video players rather
// than the frontend application.
func isPlayerPath(prefix, path string) bool {
	for _, p := range []string{"/streams/hls/", "/streams/proxy/", "/streams/direct/"} {
		if strings.HasPrefix(path, prefix+p) {
			return true
		}
	}
	return false
}

// APICORSOptions allows the frontend origin, with credentials, to call the
// JSON API.
func APICORSOptions(frontendURL string) cors.Options {
	origins := []string{frontendURL}
	allowCreds := true
	if frontendURL == "" || frontendURL == "*" {
		origins = []string{"*"}
		allowCreds = false
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", logger.RequestIDHeader},
		ExposedHeaders:   []string{logger.RequestIDHeader},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}

// PlayerCORSOptions allows any origin to read manifests and segments.
func PlayerCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Range"},
		MaxAge:         86400,
	}
}

// corsByPath applies the player CORS policy to paths matching isPlayer and
// the API policy to everything else. It runs before routing so preflight
// requests are answered for every route.
func corsByPath(frontendURL string, isPlayer func(path string) bool) func(http.Handler) http.Handler {
	api := cors.Handler(APICORSOptions(frontendURL))
	player := cors.Handler(PlayerCORSOptions())
	return func(next http.Handler) http.Handler {
		apiNext, playerNext := api(next), player(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPlayer(r.URL.Path) {
				playerNext.ServeHTTP(w, r)
				return
			}
			apiNext.ServeHTTP(w, r)
		})
	}
}

// Package api exposes the relay's HTTP surface: session control, the HLS
// manifest and segment proxy, and the direct stream redirect.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ace-hls-relay/internal/engine"
	"ace-hls-relay/internal/proxy"
	"ace-hls-relay/internal/stream"
)

// Streams is the session lifecycle the handlers drive.
type Streams interface {
	StartStream(ctx context.Context, contentID string, opts stream.StartOptions) (stream.Session, error)
	StopStream(ctx context.Context, sessionID string) error
	GetStreamStats(ctx context.Context, sessionID string) (*engine.Stats, error)
	ListActiveSessions() []stream.Session
	ActiveCount() int
}

// Relay fetches engine content on behalf of clients.
type Relay interface {
	GetManifest(ctx context.Context, sessionID, proxyBase string) (string, error)
	GetSegment(ctx context.Context, sessionHash, segment string) (*proxy.Segment, error)
	DirectStreamURL(sessionID string) (string, error)
	CountRelayed(kind string, n int64)
}

// Options configures URL construction and CORS for the handlers.
type Options struct {
	// Prefix is the mount point of all routes except /metrics and /, e.g. "/api".
	Prefix string

	// PublicBaseURL overrides the scheme and host taken from the request
	// when building hlsUrl and rewritten segment URLs.
	PublicBaseURL string

	// FrontendURL is the origin allowed to call the JSON API with credentials.
	FrontendURL string

	Version string
}

// Handler exposes the stream endpoints using go-chi.
type Handler struct {
	streams Streams
	relay   Relay
	log     *slog.Logger
	opts    Options
}

// NewHandler returns a Handler over the given lifecycle and relay.
func NewHandler(streams Streams, relay Relay, log *slog.Logger, opts Options) *Handler {
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &Handler{streams: streams, relay: relay, log: log, opts: opts}
}

// SessionView is a session as returned to clients.
type SessionView struct {
	ID        string        `json:"id"`
	ContentID string        `json:"contentId"`
	Status    stream.Status `json:"status"`
	HLSURL    string        `json:"hlsUrl"`
	StartedAt time.Time     `json:"startedAt"`
}

// StartStream handles POST /streams/start/{contentId}?events=bool.
func (h *Handler) StartStream(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentId")
	events, _ := strconv.ParseBool(r.URL.Query().Get("events"))

	s, err := h.streams.StartStream(r.Context(), contentID, stream.StartOptions{UseAPIEvents: events})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": h.view(r, s),
	})
}

// StopStream handles POST /streams/stop/{sessionId}.
func (h *Handler) StopStream(w http.ResponseWriter, r *http.Request) {
	if err := h.streams.StopStream(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Stream stopped successfully",
	})
}

// StreamStatus handles GET /streams/status/{sessionId}.
func (h *Handler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.streams.GetStreamStats(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

// ActiveStreams handles GET /streams/active.
func (h *Handler) ActiveStreams(w http.ResponseWriter, r *http.Request) {
	sessions := h.streams.ListActiveSessions()
	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, h.view(r, s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": views,
		"count":    len(views),
	})
}

// Manifest handles GET /streams/hls/{sessionId}/manifest.m3u8.
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	body, err := h.relay.GetManifest(r.Context(), sessionID, h.publicBase(r)+"/streams/proxy/")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	proxy.SetManifestHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

// Segment handles GET /streams/proxy/c/{sessionHash}/{segment}.
func (h *Handler) Segment(w http.ResponseWriter, r *http.Request) {
	seg, err := h.relay.GetSegment(r.Context(), chi.URLParam(r, "sessionHash"), chi.URLParam(r, "segment"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer seg.Body.Close()

	proxy.SetSegmentHeaders(w.Header(), seg)
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, seg.Body)
	h.relay.CountRelayed("segment", n)
	if err != nil && r.Context().Err() == nil {
		h.log.Warn("segment relay interrupted",
			slog.String("path", r.URL.Path),
			slog.Int64("bytes", n),
			slog.String("error", err.Error()))
	}
}

// Direct handles GET /streams/direct/{sessionId} by redirecting to the
// engine's raw stream.
func (h *Handler) Direct(w http.ResponseWriter, r *http.Request) {
	target, err := h.relay.DirectStreamURL(chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Info handles GET / with a short service description.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Ace Stream HLS relay",
		"version": h.opts.Version,
		"endpoints": map[string]string{
			"streams": h.opts.Prefix + "/streams",
			"health":  h.opts.Prefix + "/health",
			"metrics": "/metrics",
		},
	})
}

func (h *Handler) view(r *http.Request, s stream.Session) SessionView {
	return SessionView{
		ID:        s.ID,
		ContentID: s.ContentID,
		Status:    s.Status,
		HLSURL:    h.publicBase(r) + "/streams/hls/" + s.ID + "/manifest.m3u8",
		StartedAt: s.StartedAt,
	}
}

// publicBase is the client-facing URL of the route prefix, without a
// trailing slash.
func (h *Handler) publicBase(r *http.Request) string {
	if h.opts.PublicBaseURL != "" {
		return h.opts.PublicBaseURL + h.opts.Prefix
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + r.Host + h.opts.Prefix
}

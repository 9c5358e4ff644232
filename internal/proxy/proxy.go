// Package proxy relays the engine's HLS manifests and segments so a browser
// that can only reach this service can play them.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"ace-hls-relay/internal/platform/metrics"
	"ace-hls-relay/internal/stream"
)

const (
	// ManifestContentType is the MIME type of rewritten manifests.
	ManifestContentType = "application/vnd.apple.mpegurl"

	// DefaultSegmentContentType is used when the engine declares none.
	DefaultSegmentContentType = "video/mp2t"

	// DefaultMaxManifestBytes caps how much of a manifest is read.
	DefaultMaxManifestBytes = 1 << 20
)

// ErrFetchFailed is returned when the engine could not be asked at all.
var ErrFetchFailed = errors.New("failed to fetch from engine")

// UpstreamError is returned when the engine answered with a non-2xx status.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("engine returned %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// SessionLookup resolves a session id to a session snapshot.
type SessionLookup interface {
	Get(id string) (stream.Session, bool)
}

// Engine is the subset of the engine client the proxy needs.
type Engine interface {
	ManifestURL(contentID string) string
	StreamURL(contentID string) string
	SegmentBase() string
	SegmentURL(sessionHash, segment string) string
	Fetch(ctx context.Context, rawURL string) (*http.Response, error)
}

// Config tunes the proxy.
type Config struct {
	MaxManifestBytes int64
}

// Proxy fetches manifests and segments from the engine. It holds no
// per-request state and does not retry.
type Proxy struct {
	sessions    SessionLookup
	engine      Engine
	maxManifest int64
	log         *slog.Logger
	metrics     *metrics.Metrics
}

// New returns a Proxy. Metrics may be nil.
func New(sessions SessionLookup, eng Engine, cfg Config, log *slog.Logger, m *metrics.Metrics) *Proxy {
	if cfg.MaxManifestBytes <= 0 {
		cfg.MaxManifestBytes = DefaultMaxManifestBytes
	}
	return &Proxy{
		sessions:    sessions,
		engine:      eng,
		maxManifest: cfg.MaxManifestBytes,
		log:         log,
		metrics:     m,
	}
}

// Segment is a relayed segment. The caller must close Body.
type Segment struct {
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// GetManifest fetches the engine manifest for a session and rewrites the
// engine's segment base to proxyBase (this service's segment proxy path,
// ending in "/").
func (p *Proxy) GetManifest(ctx context.Context, sessionID, proxyBase string) (string, error) {
	s, ok := p.sessions.Get(sessionID)
	if !ok {
		return "", stream.ErrSessionNotFound
	}

	resp, err := p.fetch(ctx, "manifest", p.engine.ManifestURL(s.ContentID))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, p.maxManifest+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading manifest: %v", ErrFetchFailed, err)
	}
	if int64(len(raw)) > p.maxManifest {
		return "", fmt.Errorf("%w: manifest exceeds %d bytes", ErrFetchFailed, p.maxManifest)
	}

	body := RewriteManifest(string(raw), p.engine.SegmentBase(), proxyBase)

	if info, ok := InspectManifest(body, proxyBase); ok && len(info.Foreign) > 0 {
		p.log.Warn("manifest references engine urls outside the rewrite prefix",
			slog.String("session_id", sessionID),
			slog.Bool("multivariant", info.Multivariant),
			slog.Int("foreign", len(info.Foreign)),
			slog.String("first", info.Foreign[0]))
	}

	if p.metrics != nil {
		p.metrics.AddProxyBytes("manifest", int64(len(body)))
	}
	return body, nil
}

// GetSegment fetches engine path c/<sessionHash>/<segment> for relaying.
func (p *Proxy) GetSegment(ctx context.Context, sessionHash, segment string) (*Segment, error) {
	resp, err := p.fetch(ctx, "segment", p.engine.SegmentURL(sessionHash, segment))
	if err != nil {
		return nil, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = DefaultSegmentContentType
	}
	return &Segment{
		ContentType:   ct,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}

// DirectStreamURL returns the engine's raw stream URL for a session, for
// players that want a plain URL instead of proxied HLS.
func (p *Proxy) DirectStreamURL(sessionID string) (string, error) {
	s, ok := p.sessions.Get(sessionID)
	if !ok {
		return "", stream.ErrSessionNotFound
	}
	return p.engine.StreamURL(s.ContentID), nil
}

// CountRelayed records bytes copied to a client.
func (p *Proxy) CountRelayed(kind string, n int64) {
	if p.metrics != nil {
		p.metrics.AddProxyBytes(kind, n)
	}
}

// fetch issues the GET and turns transport failures and non-2xx statuses
// into ErrFetchFailed and *UpstreamError. On success the caller owns the body.
func (p *Proxy) fetch(ctx context.Context, kind, rawURL string) (*http.Response, error) {
	resp, err := p.engine.Fetch(ctx, rawURL)
	if err != nil {
		p.upstreamFailed(kind)
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		p.upstreamFailed(kind)
		p.log.Debug("engine rejected proxy request",
			slog.String("kind", kind),
			slog.Int("status", resp.StatusCode))
		return nil, &UpstreamError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (p *Proxy) upstreamFailed(kind string) {
	if p.metrics != nil {
		p.metrics.IncProxyUpstreamErrors(kind)
	}
}

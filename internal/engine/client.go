// Package engine talks to the external P2P streaming engine's HTTP control
// API and normalizes its responses into typed results and errors.
package engine

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

var (
	// ErrUnreachable is returned when the engine cannot be reached: network
	// failure, timeout, or a non-2xx HTTP status.
	ErrUnreachable = errors.New("engine unreachable")

	// ErrEngine is returned when the engine answered but its body carries a
	// non-null error field.
	ErrEngine = errors.New("engine error")
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "ace-hls-relay/1.0"

	versionPath  = "/webui/api/service?method=get_version"
	manifestPath = "/ace/manifest.m3u8"
	streamPath   = "/ace/getstream"
	segmentRoot  = "/ace/"

	acceptEncoding = "gzip, deflate, br"
)

// Config holds the engine client configuration.
type Config struct {
	// BaseURL is the engine origin, e.g. http://127.0.0.1:6878.
	BaseURL string

	// Timeout bounds every control request. Zero means DefaultTimeout.
	Timeout time.Duration

	UserAgent string
	Logger    *slog.Logger

	// HTTPClient overrides the underlying client. Its Timeout is left as is.
	HTTPClient *http.Client
}

// Client is a thin wrapper over the engine's HTTP control API.
// It keeps no state between calls and is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	log       *slog.Logger
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      hc,
		log:       cfg.Logger,
	}
}

// BaseURL returns the engine origin without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckEngine asks the engine for its version.
func (c *Client) CheckEngine(ctx context.Context) (*VersionInfo, error) {
	env, err := c.Request(ctx, versionPath)
	if err != nil {
		return nil, err
	}
	var info VersionInfo
	if err := env.DecodeResult(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Request issues a GET for path (relative to the engine origin) and decodes
// the JSON envelope. Transport failures and non-2xx statuses wrap
// ErrUnreachable; a non-null error field in the body wraps ErrEngine.
func (c *Client) Request(ctx context.Context, path string) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	c.log.Debug("engine request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUnreachable, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body := c.decodeBody(resp)
	defer body.Close()

	var env Envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnreachable, err)
	}
	if msg := env.ErrorMessage(); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrEngine, msg)
	}
	return &env, nil
}

// StartStream asks the engine to start relaying contentID and returns the
// locators it hands back.
func (c *Client) StartStream(ctx context.Context, contentID string, useAPIEvents bool) (*StartResult, error) {
	q := url.Values{}
	q.Set("id", contentID)
	q.Set("format", "json")
	if useAPIEvents {
		q.Set("use_api_events", "1")
	}
	path := manifestPath + "?" + q.Encode()

	env, err := c.Request(ctx, path)
	if err != nil {
		return nil, err
	}
	var res StartResult
	if err := env.DecodeResponse(&res); err != nil {
		return nil, err
	}
	if res.PlaybackURL == "" {
		res.PlaybackURL = c.baseURL + path
	}
	return &res, nil
}

// Stats polls a session's stat URL.
func (c *Client) Stats(ctx context.Context, statURL string) (*Stats, error) {
	env, err := c.Request(ctx, c.relative(statURL))
	if err != nil {
		return nil, err
	}
	var st Stats
	if err := env.DecodeResponse(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Stop issues the engine's stop command for a session's command URL.
func (c *Client) Stop(ctx context.Context, commandURL string) error {
	p := c.relative(commandURL)
	sep := "?"
	if strings.Contains(p, "?") {
		sep = "&"
	}
	_, err := c.Request(ctx, p+sep+"method=stop")
	return err
}

// Fetch performs a raw GET against an engine URL. The caller owns the
// response body. Used for manifest and segment relaying.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.http.Do(req)
}

// ManifestURL is the engine's HLS manifest for contentID.
func (c *Client) ManifestURL(contentID string) string {
	return c.baseURL + manifestPath + "?id=" + url.QueryEscape(contentID)
}

// StreamURL is the engine's raw (non-HLS) stream for contentID.
func (c *Client) StreamURL(contentID string) string {
	return c.baseURL + streamPath + "?id=" + url.QueryEscape(contentID)
}

// SegmentBase is the absolute prefix the engine uses for segment URIs in
// its manifests.
func (c *Client) SegmentBase() string {
	return c.baseURL + segmentRoot
}

// SegmentURL rebuilds the engine-side segment location from the two path
// components the proxy route carries.
func (c *Client) SegmentURL(sessionHash, segment string) string {
	return c.SegmentBase() + "c/" + url.PathEscape(sessionHash) + "/" + url.PathEscape(segment)
}

// relative strips the engine origin from an engine-issued URL so it can be
// passed to Request.
func (c *Client) relative(raw string) string {
	if strings.HasPrefix(raw, c.baseURL) {
		return strings.TrimPrefix(raw, c.baseURL)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return raw
	}
	return u.RequestURI()
}

// decodeBody unwraps a compressed response body.
func (c *Client) decodeBody(resp *http.Response) io.ReadCloser {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "":
		return resp.Body
	case "gzip":
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.log.Warn("failed to create gzip reader, returning raw body", slog.String("error", err.Error()))
			return resp.Body
		}
		return &decompressReader{reader: r, closer: resp.Body}
	case "deflate":
		return &decompressReader{reader: flate.NewReader(resp.Body), closer: resp.Body}
	case "br":
		return &decompressReader{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	default:
		return resp.Body
	}
}

type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if rc, ok := d.reader.(io.Closer); ok {
		rc.Close()
	}
	return d.closer.Close()
}

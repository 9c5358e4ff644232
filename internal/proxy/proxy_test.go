package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ace-hls-relay/internal/engine"
	"ace-hls-relay/internal/platform/logger"
	"ace-hls-relay/internal/stream"
)

const testContentID = "dd1e67078381739d14beca697356ab76d49d1a2d"

type fakeEngine struct {
	mux *http.ServeMux
	srv *httptest.Server
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	f := &fakeEngine{mux: http.NewServeMux()}
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestProxy(t *testing.T, f *fakeEngine) (*Proxy, *stream.InMemoryRegistry, *engine.Client) {
	t.Helper()
	reg := stream.NewInMemoryRegistry()
	eng := engine.New(engine.Config{BaseURL: f.srv.URL, Timeout: 2 * time.Second})
	return New(reg, eng, Config{}, logger.Discard(), nil), reg, eng
}

func addSession(t *testing.T, reg *stream.InMemoryRegistry, id string) {
	t.Helper()
	require.NoError(t, reg.Insert(stream.Session{
		ID:        id,
		ContentID: testContentID,
		Status:    stream.StatusStarting,
		StartedAt: time.Now(),
	}))
}

func TestProxy_GetManifest(t *testing.T) {
	f := newFakeEngine(t)
	f.mux.HandleFunc("/ace/manifest.m3u8", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testContentID, r.URL.Query().Get("id"))
		base := "http://" + r.Host + "/ace/"
		w.Write([]byte("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:5\n#EXTINF:5.0,\n" + base + "c/abc/1.ts\n#EXTINF:5.0,\n" + base + "c/abc/2.ts\n"))
	})
	p, reg, _ := newTestProxy(t, f)
	addSession(t, reg, "s1")

	body, err := p.GetManifest(context.Background(), "s1", "http://relay/api/streams/proxy/")
	require.NoError(t, err)
	assert.Contains(t, body, "http://relay/api/streams/proxy/c/abc/1.ts")
	assert.Contains(t, body, "http://relay/api/streams/proxy/c/abc/2.ts")
	assert.NotContains(t, body, f.srv.URL)
}

func TestProxy_GetManifest_session_not_found(t *testing.T) {
	f := newFakeEngine(t)
	p, _, _ := newTestProxy(t, f)

	_, err := p.GetManifest(context.Background(), "missing", "http://relay/proxy/")
	assert.ErrorIs(t, err, stream.ErrSessionNotFound)
}

func TestProxy_GetManifest_upstream_status(t *testing.T) {
	f := newFakeEngine(t)
	f.mux.HandleFunc("/ace/manifest.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not yet", http.StatusServiceUnavailable)
	})
	p, reg, _ := newTestProxy(t, f)
	addSession(t, reg, "s1")

	_, err := p.GetManifest(context.Background(), "s1", "http://relay/proxy/")
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
}

func TestProxy_GetManifest_fetch_failed(t *testing.T) {
	f := newFakeEngine(t)
	p, reg, _ := newTestProxy(t, f)
	addSession(t, reg, "s1")
	f.srv.Close()

	_, err := p.GetManifest(context.Background(), "s1", "http://relay/proxy/")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestProxy_GetManifest_too_large(t *testing.T) {
	f := newFakeEngine(t)
	f.mux.HandleFunc("/ace/manifest.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("#", 64)))
	})
	reg := stream.NewInMemoryRegistry()
	eng := engine.New(engine.Config{BaseURL: f.srv.URL})
	p := New(reg, eng, Config{MaxManifestBytes: 16}, logger.Discard(), nil)
	addSession(t, reg, "s1")

	_, err := p.GetManifest(context.Background(), "s1", "http://relay/proxy/")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestProxy_GetSegment(t *testing.T) {
	f := newFakeEngine(t)
	f.mux.HandleFunc("/ace/c/abc/1.ts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/MP2T")
		w.Write([]byte{0x47, 0x40, 0x00, 0x10})
	})
	f.mux.HandleFunc("/ace/c/abc/2.ts", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x47})
	})
	p, _, _ := newTestProxy(t, f)

	t.Run("passes_content_type_and_bytes", func(t *testing.T) {
		seg, err := p.GetSegment(context.Background(), "abc", "1.ts")
		require.NoError(t, err)
		defer seg.Body.Close()
		data, err := io.ReadAll(seg.Body)
		require.NoError(t, err)
		assert.Equal(t, "video/MP2T", seg.ContentType)
		assert.Equal(t, []byte{0x47, 0x40, 0x00, 0x10}, data)
	})

	t.Run("defaults_content_type", func(t *testing.T) {
		seg, err := p.GetSegment(context.Background(), "abc", "2.ts")
		require.NoError(t, err)
		defer seg.Body.Close()
		assert.Equal(t, DefaultSegmentContentType, seg.ContentType)
	})

	t.Run("upstream_404", func(t *testing.T) {
		_, err := p.GetSegment(context.Background(), "abc", "404.ts")
		var upErr *UpstreamError
		require.True(t, errors.As(err, &upErr))
		assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	})
}

func TestProxy_DirectStreamURL(t *testing.T) {
	f := newFakeEngine(t)
	p, reg, eng := newTestProxy(t, f)
	addSession(t, reg, "s1")

	u, err := p.DirectStreamURL("s1")
	require.NoError(t, err)
	assert.Equal(t, eng.StreamURL(testContentID), u)

	_, err = p.DirectStreamURL("missing")
	assert.ErrorIs(t, err, stream.ErrSessionNotFound)
}

func TestSetHeaders(t *testing.T) {
	h := http.Header{}
	SetManifestHeaders(h)
	assert.Equal(t, ManifestContentType, h.Get("Content-Type"))
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, h.Get("Cache-Control"), "no-cache")

	h = http.Header{}
	SetSegmentHeaders(h, &Segment{ContentType: "video/mp2t", ContentLength: 188})
	assert.Equal(t, "188", h.Get("Content-Length"))
	assert.Contains(t, h.Get("Cache-Control"), "max-age=86400")
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_exposes_relay_metrics(t *testing.T) {
	m := New()
	m.IncStreamsStarted()
	m.IncStatusChecks("streaming")
	m.AddProxyBytes("segment", 1316)
	m.SetEngineUp(true)

	refreshed := false
	h := m.Handler(func() {
		refreshed = true
		m.SetActiveSessions(2)
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, refreshed)

	body := rec.Body.String()
	assert.Contains(t, body, "hls_relay_streams_started_total 1")
	assert.Contains(t, body, `hls_relay_status_checks_total{result="streaming"} 1`)
	assert.Contains(t, body, `hls_relay_proxy_bytes_total{kind="segment"} 1316`)
	assert.Contains(t, body, "hls_relay_active_sessions 2")
	assert.Contains(t, body, "hls_relay_engine_up 1")
}

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "hls_relay_requests_total 2")
	assert.Contains(t, rec.Body.String(), "hls_relay_errors_total 1")
}

package main

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineVersionCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webui/api/service", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"version": "3.2.3", "code": 3020300},
			"error":  nil,
		})
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"engine", "version", "--engine-host", host, "--engine-port", port, "--log-level", "error"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "engine 3.2.3 (code 3020300) at "+srv.URL)
}

func TestEngineVersionCommand_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(srv.URL)
	host, port, _ := net.SplitHostPort(u.Host)
	srv.Close()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"engine", "version", "--engine-host", host, "--engine-port", port})

	assert.Error(t, root.Execute())
}

func TestRootCommand_rejects_invalid_config(t *testing.T) {
	t.Setenv("STATUS_CHECK_WORKERS", "-1")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve"})

	assert.Error(t, root.Execute())
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ace-hls-relay/internal/engine"
	"ace-hls-relay/internal/proxy"
	"ace-hls-relay/internal/stream"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// errorStatus maps a core error to the HTTP status it is reported with.
func errorStatus(err error) int {
	var upErr *proxy.UpstreamError
	switch {
	case errors.Is(err, stream.ErrInvalidContentID):
		return http.StatusBadRequest
	case errors.Is(err, stream.ErrSessionNotFound),
		errors.Is(err, stream.ErrNoStatsAvailable):
		return http.StatusNotFound
	case errors.As(err, &upErr):
		return upErr.StatusCode
	case errors.Is(err, stream.ErrStreamStartFailed),
		errors.Is(err, proxy.ErrFetchFailed),
		errors.Is(err, engine.ErrUnreachable),
		errors.Is(err, engine.ErrEngine):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a {success:false,error} body. Unexpected errors are
// logged at error level; expected ones at debug.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	level := slog.LevelDebug
	if status == http.StatusInternalServerError {
		level = slog.LevelError
	} else if status >= 500 {
		level = slog.LevelWarn
	}
	h.log.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()))
	writeError(w, status, err.Error())
}

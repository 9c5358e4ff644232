package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the JSON shape every control API response shares. Version
// queries answer in Result, stream operations in Response.
type Envelope struct {
	Result   json.RawMessage `json:"result"`
	Response json.RawMessage `json:"response"`
	Error    json.RawMessage `json:"error"`
}

// ErrorMessage returns the engine-reported error, or "" when the field is
// absent or null.
func (e *Envelope) ErrorMessage() string {
	raw := bytes.TrimSpace(e.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return ""
		}
		return s
	}
	return string(raw)
}

// DecodeResult decodes the result field into v.
func (e *Envelope) DecodeResult(v any) error {
	return decodeField("result", e.Result, v)
}

// DecodeResponse decodes the response field into v.
func (e *Envelope) DecodeResponse(v any) error {
	return decodeField("response", e.Response, v)
}

func decodeField(name string, raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: empty %s", ErrEngine, name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUnreachable, name, err)
	}
	return nil
}

// VersionInfo is the engine's answer to get_version.
type VersionInfo struct {
	Version string `json:"version"`
	Code    int    `json:"code"`
}

// StartResult carries the locators the engine returns for a started stream.
type StartResult struct {
	PlaybackURL string `json:"playback_url"`
	StatURL     string `json:"stat_url"`
	CommandURL  string `json:"command_url"`
	EventURL    string `json:"event_url,omitempty"`
}

// Stats statuses reported by the engine.
const (
	StatusPrebuffering = "prebuf"
	StatusDownloading  = "dl"
)

// Stats is a snapshot of one stream's P2P statistics.
type Stats struct {
	Status        string  `json:"status"`
	Peers         int     `json:"peers"`
	SpeedDown     int64   `json:"speed_down"`
	SpeedUp       int64   `json:"speed_up"`
	Downloaded    int64   `json:"downloaded"`
	Uploaded      int64   `json:"uploaded"`
	TotalProgress float64 `json:"total_progress"`
}

// Downloading reports whether the engine is actively downloading.
func (s *Stats) Downloading() bool {
	return s != nil && s.Status == StatusDownloading
}

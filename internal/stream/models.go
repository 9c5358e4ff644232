package stream

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// ContentIDLength is the exact length of a content identifier.
const ContentIDLength = 40

// Session is one active relay of one content identifier.
// Values are copied in and out of the Registry; holding one never gives
// access to registry state.
type Session struct {
	ID        string
	ContentID string

	// Engine-provided locators. EventURL is only set when API events were requested.
	PlaybackURL string
	StatURL     string
	CommandURL  string
	EventURL    string

	Status    Status
	StartedAt time.Time
}

// StartOptions are the caller-tunable parts of a start request.
type StartOptions struct {
	// UseAPIEvents asks the engine to deliver playback events.
	UseAPIEvents bool
}

// ValidContentID reports whether id is exactly 40 hexadecimal characters,
// in either case.
func ValidContentID(id string) bool {
	if len(id) != ContentIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// newSessionID returns a fresh, time-ordered session identifier.
func newSessionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

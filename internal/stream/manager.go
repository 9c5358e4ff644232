package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ace-hls-relay/internal/engine"
	"ace-hls-relay/internal/platform/metrics"
)

var (
	// ErrInvalidContentID is returned when a content identifier is not
	// exactly 40 hexadecimal characters. No engine call is made.
	ErrInvalidContentID = errors.New("invalid content id format")

	// ErrSessionNotFound is returned when an operation targets a session id
	// that is not registered.
	ErrSessionNotFound = errors.New("stream session not found")

	// ErrStreamStartFailed wraps the engine failure that prevented a start.
	ErrStreamStartFailed = errors.New("failed to start stream")

	// ErrNoStatsAvailable is returned when a session has no stat URL.
	ErrNoStatsAvailable = errors.New("no stats available for session")
)

// DefaultCheckTimeout bounds the stats poll made by a deferred check.
const DefaultCheckTimeout = 5 * time.Second

// Engine is the subset of the engine client the Manager drives.
type Engine interface {
	StartStream(ctx context.Context, contentID string, useAPIEvents bool) (*engine.StartResult, error)
	Stats(ctx context.Context, statURL string) (*engine.Stats, error)
	Stop(ctx context.Context, commandURL string) error
}

// ManagerConfig tunes the deferred status check.
type ManagerConfig struct {
	CheckDelay   time.Duration
	CheckWorkers int
	CheckTimeout time.Duration
}

// Manager owns session state transitions: it starts and stops sessions
// against the engine, promotes them in the background, and serves stats.
// It is the only writer of Session.Status.
type Manager struct {
	registry     Registry
	engine       Engine
	checker      *Checker
	checkTimeout time.Duration
	log          *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewManager returns a Manager over registry and eng. Metrics may be nil.
// Call Close to stop background checks.
func NewManager(registry Registry, eng Engine, cfg ManagerConfig, log *slog.Logger, m *metrics.Metrics) *Manager {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	mgr := &Manager{
		registry:     registry,
		engine:       eng,
		checkTimeout: cfg.CheckTimeout,
		log:          log,
		metrics:      m,
		now:          time.Now,
	}
	mgr.checker = NewChecker(cfg.CheckDelay, cfg.CheckWorkers, mgr.runStatusCheck, log)
	return mgr
}

// Close stops pending and running status checks.
func (m *Manager) Close() {
	m.checker.Close()
}

// StartStream asks the engine to start contentID and registers a session in
// status starting. A status check is scheduled; StartStream does not wait
// for it.
func (m *Manager) StartStream(ctx context.Context, contentID string, opts StartOptions) (Session, error) {
	if !ValidContentID(contentID) {
		return Session{}, ErrInvalidContentID
	}

	res, err := m.engine.StartStream(ctx, contentID, opts.UseAPIEvents)
	if err != nil {
		if m.metrics != nil {
			m.metrics.IncStreamStartFailures()
		}
		return Session{}, fmt.Errorf("%w: %w", ErrStreamStartFailed, err)
	}

	s := Session{
		ContentID:   contentID,
		PlaybackURL: res.PlaybackURL,
		StatURL:     res.StatURL,
		CommandURL:  res.CommandURL,
		EventURL:    res.EventURL,
		Status:      StatusStarting,
		StartedAt:   m.now().UTC(),
	}
	for attempt := 0; ; attempt++ {
		s.ID = newSessionID()
		err = m.registry.Insert(s)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateSession) || attempt >= 2 {
			return Session{}, fmt.Errorf("%w: %w", ErrStreamStartFailed, err)
		}
	}

	m.checker.Schedule(s.ID)

	m.log.Info("stream started",
		slog.String("session_id", s.ID),
		slog.String("content_id", contentID),
		slog.Bool("api_events", opts.UseAPIEvents))
	if m.metrics != nil {
		m.metrics.IncStreamsStarted()
	}
	return s, nil
}

// StopStream stops and removes a session. The engine stop command is best
// effort: its failure is logged and the session is removed regardless.
func (m *Manager) StopStream(ctx context.Context, sessionID string) error {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	if s.CommandURL != "" {
		if err := m.engine.Stop(ctx, s.CommandURL); err != nil {
			m.log.Warn("failed to stop stream gracefully",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}
	}

	m.checker.Cancel(sessionID)
	if !m.registry.Delete(sessionID) {
		// Lost a race with a concurrent stop.
		return ErrSessionNotFound
	}

	m.log.Info("stream stopped",
		slog.String("session_id", sessionID),
		slog.String("content_id", s.ContentID),
		slog.String("last_status", string(s.Status)))
	if m.metrics != nil {
		m.metrics.IncStreamsStopped()
	}
	return nil
}

// GetStreamStats polls the engine for a session's statistics. Engine errors
// are returned unchanged.
func (m *Manager) GetStreamStats(ctx context.Context, sessionID string) (*engine.Stats, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m.pollStats(ctx, s)
}

// ListActiveSessions returns a snapshot of all registered sessions.
func (m *Manager) ListActiveSessions() []Session {
	return m.registry.Snapshot()
}

// ActiveCount returns the number of registered sessions.
func (m *Manager) ActiveCount() int {
	return m.registry.Count()
}

func (m *Manager) pollStats(ctx context.Context, s Session) (*engine.Stats, error) {
	if s.StatURL == "" {
		return nil, ErrNoStatsAvailable
	}
	return m.engine.Stats(ctx, s.StatURL)
}

// runStatusCheck is the deferred check run by the Checker. Failures are
// recorded in the session status, never returned. Every write is
// conditional on the session still existing in status starting.
func (m *Manager) runStatusCheck(ctx context.Context, sessionID string) {
	s, ok := m.registry.Get(sessionID)
	if !ok || s.Status != StatusStarting {
		m.recordCheck("skipped")
		return
	}

	pollCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	st, err := m.pollStats(pollCtx, s)
	if err != nil {
		if m.registry.CompareAndSetStatus(sessionID, StatusStarting, StatusError) {
			m.log.Warn("stream status check failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}
		m.recordCheck("error")
		return
	}

	if st.Downloading() {
		if m.registry.CompareAndSetStatus(sessionID, StatusStarting, StatusStreaming) {
			m.log.Info("stream is streaming",
				slog.String("session_id", sessionID),
				slog.Int("peers", st.Peers))
		}
		m.recordCheck("streaming")
		return
	}

	m.log.Debug("stream still buffering",
		slog.String("session_id", sessionID),
		slog.String("engine_status", st.Status))
	m.recordCheck("starting")
}

func (m *Manager) recordCheck(result string) {
	if m.metrics != nil {
		m.metrics.IncStatusChecks(result)
	}
}

package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule is how often the Monitor probes the engine.
const DefaultSchedule = "@every 30s"

// EngineGauge receives the result of each probe.
type EngineGauge interface {
	SetEngineUp(up bool)
}

// Monitor probes the engine on a cron schedule, logs transitions between up
// and down, and reports each result to a gauge.
type Monitor struct {
	engine  Prober
	gauge   EngineGauge
	log     *slog.Logger
	timeout time.Duration

	cron *cron.Cron

	mu   sync.Mutex
	up   bool
	seen bool
}

// NewMonitor parses schedule (standard cron or @every descriptors) and
// returns a stopped Monitor. Gauge may be nil.
func NewMonitor(eng Prober, gauge EngineGauge, schedule string, log *slog.Logger) (*Monitor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	m := &Monitor{
		engine:  eng,
		gauge:   gauge,
		log:     log,
		timeout: HealthTimeout,
		cron:    cron.New(),
	}
	if _, err := m.cron.AddFunc(schedule, m.probe); err != nil {
		return nil, fmt.Errorf("invalid engine health schedule %q: %w", schedule, err)
	}
	return m, nil
}

// Start runs one probe immediately and then starts the schedule.
func (m *Monitor) Start() {
	m.probe()
	m.cron.Start()
	m.log.Info("engine monitor started")
}

// Stop halts the schedule and waits for a running probe to return.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
	m.log.Info("engine monitor stopped")
}

// Up reports the result of the most recent probe.
func (m *Monitor) Up() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.up
}

func (m *Monitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	info, err := m.engine.CheckEngine(ctx)
	up := err == nil

	m.mu.Lock()
	changed := !m.seen || m.up != up
	m.up, m.seen = up, true
	m.mu.Unlock()

	if m.gauge != nil {
		m.gauge.SetEngineUp(up)
	}
	if !changed {
		return
	}
	if up {
		m.log.Info("engine is up", slog.String("version", info.Version))
	} else {
		m.log.Warn("engine is down", slog.String("error", err.Error()))
	}
}

package health

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ace-hls-relay/internal/engine"
	"ace-hls-relay/internal/platform/logger"
)

type gaugeRecorder struct {
	mu     sync.Mutex
	values []bool
}

func (g *gaugeRecorder) SetEngineUp(up bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = append(g.values, up)
}

func (g *gaugeRecorder) last() (bool, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.values) == 0 {
		return false, 0
	}
	return g.values[len(g.values)-1], len(g.values)
}

func TestNewMonitor_invalid_schedule(t *testing.T) {
	_, err := NewMonitor(&fakeProber{}, nil, "every now and then", logger.Discard())
	assert.Error(t, err)
}

func TestMonitor_probe(t *testing.T) {
	p := &fakeProber{}
	g := &gaugeRecorder{}
	m, err := NewMonitor(p, g, "@every 1h", logger.Discard())
	require.NoError(t, err)

	m.Start()
	defer m.Stop()

	up, n := g.last()
	assert.True(t, up, "Start probes immediately")
	assert.Equal(t, 1, n)
	assert.True(t, m.Up())

	p.setErr(engine.ErrUnreachable)
	m.probe()
	up, n = g.last()
	assert.False(t, up)
	assert.Equal(t, 2, n)
	assert.False(t, m.Up())
}

func TestMonitor_nil_gauge(t *testing.T) {
	m, err := NewMonitor(&fakeProber{}, nil, "", logger.Discard())
	require.NoError(t, err)
	m.probe()
	assert.True(t, m.Up())
}

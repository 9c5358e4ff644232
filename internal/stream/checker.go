package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultCheckDelay is how long after start a session's status is first checked.
	DefaultCheckDelay = 3 * time.Second

	// DefaultCheckWorkers is the number of goroutines running due checks.
	DefaultCheckWorkers = 4
)

// CheckFunc runs one deferred check for a session.
type CheckFunc func(ctx context.Context, sessionID string)

// Checker is a task queue of one-shot, per-session deferred checks.
// Schedule arms a timer for a session id; when it fires the id is queued
// for a fixed pool of workers. A pending check can be cancelled by id.
type Checker struct {
	delay time.Duration
	check CheckFunc
	log   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	queue   chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChecker creates a Checker and starts its workers. Non-positive delay
// or workers fall back to the defaults.
func NewChecker(delay time.Duration, workers int, check CheckFunc, log *slog.Logger) *Checker {
	if delay <= 0 {
		delay = DefaultCheckDelay
	}
	if workers <= 0 {
		workers = DefaultCheckWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Checker{
		delay:   delay,
		check:   check,
		log:     log,
		pending: make(map[string]*time.Timer),
		queue:   make(chan string, workers*4),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

// Schedule arms a check for sessionID after the configured delay. A check
// already pending for the same id is replaced.
func (c *Checker) Schedule(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return
	}
	if t, ok := c.pending[sessionID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(c.delay, func() { c.fire(sessionID, t) })
	c.pending[sessionID] = t
}

// Cancel drops a pending check. It returns false if none was pending; a
// check that has already been handed to a worker is not interrupted.
func (c *Checker) Cancel(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.pending[sessionID]
	if !ok {
		return false
	}
	t.Stop()
	delete(c.pending, sessionID)
	return true
}

// Pending returns the number of armed, not yet fired checks.
func (c *Checker) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops all timers and workers and waits for running checks to return.
func (c *Checker) Close() {
	c.mu.Lock()
	for id, t := range c.pending {
		t.Stop()
		delete(c.pending, id)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Checker) fire(sessionID string, t *time.Timer) {
	c.mu.Lock()
	// A replaced or cancelled timer may still fire once.
	if cur, ok := c.pending[sessionID]; !ok || cur != t {
		c.mu.Unlock()
		return
	}
	delete(c.pending, sessionID)
	c.mu.Unlock()

	select {
	case c.queue <- sessionID:
	case <-c.ctx.Done():
	}
}

func (c *Checker) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case id := <-c.queue:
			c.run(id)
		}
	}
}

func (c *Checker) run(sessionID string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("status check panicked",
				slog.String("session_id", sessionID),
				slog.Any("panic", r))
		}
	}()
	c.check(c.ctx, sessionID)
}

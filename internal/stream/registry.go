package stream

import (
	"errors"
	"sort"
	"sync"
)

// Registry defines the concurrency-safe contract for the set of active
// sessions. A session is present if and only if it has not been stopped.
type Registry interface {
	// Insert adds s. It fails with ErrDuplicateSession if s.ID is present.
	Insert(s Session) error

	// Get returns a copy of the session with the given id.
	Get(id string) (Session, bool)

	// Delete removes the session and reports whether it was present.
	Delete(id string) bool

	// Snapshot returns copies of all sessions, oldest first.
	Snapshot() []Session

	// CompareAndSetStatus sets the status of id to to, but only if the
	// session exists and its current status is from.
	CompareAndSetStatus(id string, from, to Status) bool

	// Count returns the number of active sessions.
	Count() int
}

// ErrDuplicateSession is returned when inserting a session whose id is
// already registered.
var ErrDuplicateSession = errors.New("session id already registered")

// InMemoryRegistry is a concurrency-safe Registry over a Store.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRegistry constructs a registry with a default in-memory store.
func NewInMemoryRegistry() *InMemoryRegistry {
	return NewInMemoryRegistryWithStore(NewInMemoryStore())
}

// NewInMemoryRegistryWithStore constructs a registry that uses the given Store.
func NewInMemoryRegistryWithStore(store Store) *InMemoryRegistry {
	return &InMemoryRegistry{store: store}
}

// Insert implements Registry.Insert.
func (r *InMemoryRegistry) Insert(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetSession(s.ID); exists {
		return ErrDuplicateSession
	}
	r.store.SetSession(s)
	return nil
}

// Get implements Registry.Get.
func (r *InMemoryRegistry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.GetSession(id)
}

// Delete implements Registry.Delete.
func (r *InMemoryRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.DeleteSession(id)
}

// Snapshot implements Registry.Snapshot.
func (r *InMemoryRegistry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListSessionIDs()
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.store.GetSession(id); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// CompareAndSetStatus implements Registry.CompareAndSetStatus.
func (r *InMemoryRegistry) CompareAndSetStatus(id string, from, to Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.GetSession(id)
	if !ok || s.Status != from {
		return false
	}
	s.Status = to
	r.store.SetSession(s)
	return true
}

// Count implements Registry.Count.
func (r *InMemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListSessionIDs())
}

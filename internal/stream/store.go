package stream

// Store is the storage abstraction behind the Registry.
// Implementations need not be safe for concurrent use; the Registry
// serializes access.
type Store interface {
	GetSession(id string) (Session, bool)
	SetSession(s Session)
	DeleteSession(id string) bool
	ListSessionIDs() []string
}

// InMemoryStore is a map-backed Store.
type InMemoryStore struct {
	sessions map[string]Session
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]Session),
	}
}

// GetSession implements Store.GetSession.
func (s *InMemoryStore) GetSession(id string) (Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// SetSession implements Store.SetSession.
func (s *InMemoryStore) SetSession(sess Session) {
	s.sessions[sess.ID] = sess
}

// DeleteSession implements Store.DeleteSession.
func (s *InMemoryStore) DeleteSession(id string) bool {
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// ListSessionIDs implements Store.ListSessionIDs.
func (s *InMemoryStore) ListSessionIDs() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

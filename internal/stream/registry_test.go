package stream

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryRegistry_Insert(t *testing.T) {
	reg := NewInMemoryRegistry()
	s := Session{ID: "s1", ContentID: "c1", Status: StatusStarting, StartedAt: time.Now()}

	t.Run("success", func(t *testing.T) {
		if err := reg.Insert(s); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		got, ok := reg.Get("s1")
		if !ok || got != s {
			t.Errorf("Get: ok=%v got %+v", ok, got)
		}
	})

	t.Run("duplicate_rejected", func(t *testing.T) {
		dup := s
		dup.ContentID = "other"
		if err := reg.Insert(dup); !errors.Is(err, ErrDuplicateSession) {
			t.Errorf("expected ErrDuplicateSession, got %v", err)
		}
		got, _ := reg.Get("s1")
		if got.ContentID != "c1" {
			t.Errorf("duplicate insert must not overwrite, got %q", got.ContentID)
		}
	})
}

func TestInMemoryRegistry_Delete(t *testing.T) {
	reg := NewInMemoryRegistry()
	_ = reg.Insert(Session{ID: "s1"})

	if !reg.Delete("s1") {
		t.Error("Delete of present id should return true")
	}
	if reg.Delete("s1") {
		t.Error("Delete of absent id should return false")
	}
	if _, ok := reg.Get("s1"); ok {
		t.Error("session should be gone")
	}
}

func TestInMemoryRegistry_Snapshot(t *testing.T) {
	reg := NewInMemoryRegistry()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = reg.Insert(Session{ID: "c", StartedAt: base.Add(2 * time.Second)})
	_ = reg.Insert(Session{ID: "b", StartedAt: base})
	_ = reg.Insert(Session{ID: "a", StartedAt: base})

	snap := reg.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(snap))
	}
	if snap[0].ID != "a" || snap[1].ID != "b" || snap[2].ID != "c" {
		t.Errorf("expected oldest first with id tiebreak, got %s %s %s", snap[0].ID, snap[1].ID, snap[2].ID)
	}

	t.Run("copies_are_detached", func(t *testing.T) {
		snap[0].Status = StatusError
		got, _ := reg.Get("a")
		if got.Status == StatusError {
			t.Error("mutating a snapshot must not change the registry")
		}
	})

	t.Run("empty", func(t *testing.T) {
		snap := NewInMemoryRegistry().Snapshot()
		if snap == nil || len(snap) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", snap)
		}
	})
}

func TestInMemoryRegistry_CompareAndSetStatus(t *testing.T) {
	reg := NewInMemoryRegistry()
	_ = reg.Insert(Session{ID: "s1", Status: StatusStarting})

	if reg.CompareAndSetStatus("s1", StatusStreaming, StatusError) {
		t.Error("CAS with wrong from status should fail")
	}
	if !reg.CompareAndSetStatus("s1", StatusStarting, StatusStreaming) {
		t.Error("CAS with matching from status should succeed")
	}
	got, _ := reg.Get("s1")
	if got.Status != StatusStreaming {
		t.Errorf("expected streaming, got %s", got.Status)
	}

	t.Run("absent_session_not_resurrected", func(t *testing.T) {
		if reg.CompareAndSetStatus("missing", StatusStarting, StatusError) {
			t.Error("CAS on absent id should fail")
		}
		if _, ok := reg.Get("missing"); ok {
			t.Error("CAS must not create a session")
		}
	})
}

func TestInMemoryRegistry_concurrent(t *testing.T) {
	reg := NewInMemoryRegistry()
	const n = 64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			_ = reg.Insert(Session{ID: id, Status: StatusStarting})
			reg.CompareAndSetStatus(id, StatusStarting, StatusStreaming)
			_ = reg.Snapshot()
			if i%2 == 0 {
				reg.Delete(id)
			}
		}(i)
	}
	wg.Wait()

	if got := reg.Count(); got != n/2 {
		t.Errorf("expected %d sessions, got %d", n/2, got)
	}
	for _, s := range reg.Snapshot() {
		if s.Status != StatusStreaming {
			t.Errorf("session %s: expected streaming, got %s", s.ID, s.Status)
		}
	}
}

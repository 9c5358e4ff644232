package stream

import (
	"sort"
	"testing"
)

func TestInMemoryStore_GetSetSession(t *testing.T) {
	store := NewInMemoryStore()

	if _, ok := store.GetSession("s1"); ok {
		t.Error("expected not found for empty store")
	}

	store.SetSession(Session{ID: "s1", Status: StatusStarting})
	got, ok := store.GetSession("s1")
	if !ok || got.Status != StatusStarting {
		t.Errorf("GetSession: ok=%v got %+v", ok, got)
	}

	store.SetSession(Session{ID: "s1", Status: StatusStreaming})
	got, _ = store.GetSession("s1")
	if got.Status != StatusStreaming {
		t.Errorf("SetSession should replace: got %s", got.Status)
	}
}

func TestInMemoryStore_DeleteSession(t *testing.T) {
	store := NewInMemoryStore()
	store.SetSession(Session{ID: "a"})
	store.SetSession(Session{ID: "b"})

	if !store.DeleteSession("a") {
		t.Error("DeleteSession of present id should return true")
	}
	if store.DeleteSession("a") {
		t.Error("second DeleteSession should return false")
	}

	ids := store.ListSessionIDs()
	sort.Strings(ids)
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("ListSessionIDs: got %v", ids)
	}
}

func TestNewInMemoryRegistryWithStore(t *testing.T) {
	store := NewInMemoryStore()
	reg := NewInMemoryRegistryWithStore(store)

	if err := reg.Insert(Session{ID: "s1", Status: StatusStarting}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok := store.GetSession("s1"); !ok {
		t.Error("injected store should contain session after Insert")
	}
}

package workflow

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStore_SaveAndGet(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, clock)

	session := NewSession(TypeIssuePage, clock.Now())
	store.Save(session)

	if got := store.Get(session.ID); got == nil || got.ID != session.ID {
		t.Errorf("Get = %+v, want stored session", got)
	}
	if store.Get("unknown") != nil {
		t.Error("Get(unknown) must be nil")
	}
}

func TestStore_LazyEviction(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, clock)

	session := NewSession(TypeIssuePage, clock.Now())
	store.Save(session)

	clock.Advance(29 * time.Minute)
	if store.Get(session.ID) == nil {
		t.Fatal("session must survive inside the TTL")
	}

	clock.Advance(2 * time.Minute)
	if store.Get(session.ID) != nil {
		t.Error("expired session must be evicted on Get")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0 after lazy eviction", store.Len())
	}
}

func TestStore_SaveRefreshesTTL(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, clock)

	session := NewSession(TypeIssuePage, clock.Now())
	store.Save(session)

	clock.Advance(20 * time.Minute)
	store.Save(session)

	clock.Advance(20 * time.Minute)
	if store.Get(session.ID) == nil {
		t.Error("Save must reset the inactivity window")
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, clock)

	old := NewSession(TypeIssuePage, clock.Now())
	store.Save(old)

	clock.Advance(31 * time.Minute)
	fresh := NewSession(TypeContentPage, clock.Now())
	store.Save(fresh)

	if removed := store.CleanupExpired(); removed != 1 {
		t.Errorf("CleanupExpired = %d, want 1", removed)
	}
	if store.Get(fresh.ID) == nil {
		t.Error("fresh session must survive the sweep")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestStore_Delete(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, clock)

	session := NewSession(TypeIssuePage, clock.Now())
	store.Save(session)
	store.Delete(session.ID)

	if store.Get(session.ID) != nil {
		t.Error("deleted session must be gone")
	}
	store.Delete("unknown")
}

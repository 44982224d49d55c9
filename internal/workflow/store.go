package workflow

import (
	"log"
	"sync"
	"time"
)

// Clock supplies the current time. Injected so expiry behavior is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store keeps live sessions in memory with a TTL measured from each
// session's last activity. Expired sessions are evicted lazily on Get and in
// bulk by CleanupExpired.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    Clock
}

// NewStore creates a Store with the given session TTL.
func NewStore(ttl time.Duration, clock Clock) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clock,
	}
}

// Save touches and stores a session.
func (s *Store) Save(session *Session) {
	session.Touch(s.clock.Now())
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	log.Printf("session saved: id=%s state=%s", session.ID, session.State)
}

// Get returns a live session, or nil when it is unknown or expired. An
// expired session is removed on the spot.
func (s *Store) Get(sessionID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if s.expired(session) {
		delete(s.sessions, sessionID)
		log.Printf("expired session dropped: id=%s", sessionID)
		return nil
	}
	return session
}

// Delete removes a session if present.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// CleanupExpired sweeps out every expired session and reports how many were
// removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("session sweep: removed=%d", removed)
	}
	return removed
}

// Len reports the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expired(session *Session) bool {
	return s.clock.Now().Sub(session.UpdatedAt) > s.ttl
}

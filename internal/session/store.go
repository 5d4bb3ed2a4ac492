package session

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrAlreadyActive is returned when a login is attempted while an
	// unexpired session exists for the same registration.
	ErrAlreadyActive = errors.New("session: already active")

	// ErrNoSession is returned when no active session exists for a
	// registration.
	ErrNoSession = errors.New("session: no active session")
)

// Store holds at most one live session per registration.
// Operations on different registrations run in parallel; operations on
// the same registration are serialized by a per-entry mutex. Lock order
// is always store lock before entry lock.
type Store struct {
	clock  Clock
	logger zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// NewStore creates an empty session store.
func NewStore(clock Clock, logger zerolog.Logger) *Store {
	if clock == nil {
		clock = RealClock{}
	}
	return &Store{
		clock:   clock,
		logger:  logger.With().Str("component", "session-store").Logger(),
		entries: make(map[string]*entry),
	}
}

// Create starts a session for the profile. It fails with ErrAlreadyActive
// while an unexpired session exists for the registration; an expired one
// found here is terminal and gets replaced.
func (s *Store) Create(profile Profile, limitMinutes int, milestones []int) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	if e, ok := s.entries[profile.Registration]; ok {
		e.mu.Lock()
		expired := e.sess.Expired(now)
		e.mu.Unlock()

		if !expired {
			return nil, ErrAlreadyActive
		}

		s.logger.Debug().
			Str("registration", profile.Registration).
			Msg("Replacing expired session")
	}

	sess := &Session{
		Profile:      profile,
		StartedAt:    now,
		LimitMinutes: limitMinutes,
		Milestones:   milestones,
		sent:         make(map[int]bool),
	}

	s.entries[profile.Registration] = &entry{sess: sess}

	return sess, nil
}

// With runs fn on the session for registration inside its per-entry
// critical section. It returns ErrNoSession if none exists; any error
// from fn is passed through.
func (s *Store) With(registration string, fn func(*Session) error) error {
	s.mu.RLock()
	e, ok := s.entries[registration]
	if !ok {
		s.mu.RUnlock()
		return ErrNoSession
	}

	e.mu.Lock()
	s.mu.RUnlock()
	defer e.mu.Unlock()

	return fn(e.sess)
}

// Remove destroys the session for registration. It is idempotent and
// waits for any in-flight With on the same registration to finish.
func (s *Store) Remove(registration string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[registration]; ok {
		e.mu.Lock()
		e.mu.Unlock()
	}

	delete(s.entries, registration)
}

// RemoveExpired destroys the session for registration only if its time
// budget is exhausted, so an eviction decided during a poll cannot tear
// down a session recreated in the meantime. It reports whether a
// session was removed.
func (s *Store) RemoveExpired(registration string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[registration]
	if !ok {
		return false
	}

	e.mu.Lock()
	expired := e.sess.Expired(s.clock.Now())
	e.mu.Unlock()

	if !expired {
		return false
	}

	delete(s.entries, registration)
	return true
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Package session implements the per-user request supervisor: a keyed store
// of per-user state, the admission gate (busy/cooldown policy), and the hub
// that owns cancellable task lifecycles.
package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// UserID identifies an end user. Opaque beyond equality.
type UserID int64

// Profile is captured on first contact and immutable thereafter.
type Profile struct {
	ID        UserID
	FirstName string
	Username  string
}

// Session is one user's supervisor state. All fields are guarded by mu;
// every read-modify-write on a session is a critical section so two racing
// events for the same user cannot both pass admission.
type Session struct {
	mu sync.Mutex

	busy        bool
	lastRequest time.Time
	task        *Task

	profile    Profile
	registered bool
}

// Store is a lazily-populated map of UserID to Session. Entries live for the
// process lifetime; there is no eviction and no persistence.
type Store struct {
	mu sync.RWMutex
	m  map[UserID]*Session

	users atomic.Int64 // registered (first-contact) users
}

func NewStore() *Store {
	return &Store{m: make(map[UserID]*Session)}
}

func (s *Store) get(id UserID) *Session {
	s.mu.RLock()
	sess := s.m[id]
	s.mu.RUnlock()
	if sess != nil {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess = s.m[id]; sess == nil {
		sess = &Session{}
		s.m[id] = sess
	}
	return sess
}

// Register records a user's profile on first contact. It is idempotent: only
// the first call for a given user wins, and only that call reports
// first=true. total is the number of registered users including this one.
func (s *Store) Register(p Profile) (first bool, total int64) {
	sess := s.get(p.ID)
	sess.mu.Lock()
	if sess.registered {
		sess.mu.Unlock()
		return false, s.users.Load()
	}
	sess.profile = p
	sess.registered = true
	sess.mu.Unlock()
	return true, s.users.Add(1)
}

// Profile returns the registered profile, if any.
func (s *Store) Profile(id UserID) (Profile, bool) {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.profile, sess.registered
}

// Users reports how many users have been registered.
func (s *Store) Users() int64 { return s.users.Load() }

// Busy reports whether the user currently has a task in flight.
func (s *Store) Busy(id UserID) bool {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.busy
}

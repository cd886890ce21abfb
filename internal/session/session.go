// Package session holds runtime state for the active control session.
package session

import (
	"sync"

	"github.com/frudas24/livecontrol/internal/remote"
	"github.com/frudas24/livecontrol/internal/stream"
	"golang.org/x/crypto/bcrypt"
)

// Point is a normalized cursor position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Snapshot represents a read-only view of the current session state.
type Snapshot struct {
	Authenticated bool
	InputEnabled  bool
	Conn          remote.ConnState
	Stream        stream.Config
	StreamChosen  bool
	LastAction    string
	Cursor        Point
	Version       uint64
}

// Usable reports whether input may be forwarded to the host.
func (s Snapshot) Usable() bool {
	return s.Conn.Online && s.InputEnabled
}

// Session holds runtime state shared by every input surface.
type Session struct {
	mu            sync.RWMutex
	hash          []byte
	authenticated bool
	inputEnabled  bool
	conn          remote.ConnState
	stream        stream.Config
	streamChosen  bool
	lastAction    string
	cursor        Point
	version       uint64
	subs          map[chan Snapshot]struct{}
}

// HashPassword returns the bcrypt hash of a plain UI password.
func HashPassword(pass string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
}

// New returns an initialized session checking logins against a bcrypt hash.
func New(hash []byte) *Session {
	return &Session{
		hash:         hash,
		inputEnabled: true,
		stream:       stream.Default(),
		cursor:       Point{X: 0.5, Y: 0.5},
		subs:         make(map[chan Snapshot]struct{}),
	}
}

// Authenticate validates the password and marks the session as authenticated.
func (s *Session) Authenticate(pass string) bool {
	ok := pass != "" && len(s.hash) > 0 && bcrypt.CompareHashAndPassword(s.hash, []byte(pass)) == nil
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = ok
	s.changedLocked()
	return ok
}

// Logout clears authentication state.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.changedLocked()
}

// IsAuthenticated reports whether the session is authenticated.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// SetInputEnabled toggles whether inputs are forwarded to the host.
func (s *Session) SetInputEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inputEnabled == enabled {
		return
	}
	s.inputEnabled = enabled
	s.changedLocked()
}

// InputEnabled reports whether inputs are forwarded to the host.
func (s *Session) InputEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputEnabled
}

// SetConn stores the latest host connection state.
func (s *Session) SetConn(c remote.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = c
	s.changedLocked()
}

// Conn returns the latest host connection state.
func (s *Session) Conn() remote.ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Usable reports whether the host is online and input is enabled.
func (s *Session) Usable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.Online && s.inputEnabled
}

// SetStream replaces the stream config. chosen marks a user choice, which host defaults no longer override.
func (s *Session) SetStream(c stream.Config, chosen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = c
	s.streamChosen = s.streamChosen || chosen
	s.changedLocked()
}

// ResetStream clears the user choice and applies c.
func (s *Session) ResetStream(c stream.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = c
	s.streamChosen = false
	s.changedLocked()
}

// Stream returns the current stream config.
func (s *Session) Stream() stream.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream
}

// StreamChosen reports whether the stream config came from the user.
func (s *Session) StreamChosen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamChosen
}

// SetLastAction records the most recent dispatched action name.
func (s *Session) SetLastAction(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAction == name {
		return
	}
	s.lastAction = name
	s.changedLocked()
}

// LastAction returns the most recent dispatched action name.
func (s *Session) LastAction() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAction
}

// SetCursor stores the cursor indicator position. It does not notify subscribers.
func (s *Session) SetCursor(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = Point{X: x, Y: y}
}

// Cursor returns the cursor indicator position.
func (s *Session) Cursor() Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving the latest snapshot after each change, and a cancel func.
// Slow readers only see the most recent snapshot.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

// snapshotLocked builds a snapshot while holding the lock.
func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Authenticated: s.authenticated,
		InputEnabled:  s.inputEnabled,
		Conn:          s.conn,
		Stream:        s.stream,
		StreamChosen:  s.streamChosen,
		LastAction:    s.lastAction,
		Cursor:        s.cursor,
		Version:       s.version,
	}
}

// changedLocked bumps the version and pushes a snapshot to subscribers without blocking.
func (s *Session) changedLocked() {
	s.version++
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

package testutil

import (
	"sync"

	"github.com/frudas24/livecontrol/internal/remote"
)

// RecordingSender records dispatched actions instead of sending them.
type RecordingSender struct {
	mu      sync.Mutex
	actions []remote.Action
}

// Dispatch records a.
func (s *RecordingSender) Dispatch(a remote.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, a)
}

// Actions returns a copy of every recorded action.
func (s *RecordingSender) Actions() []remote.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remote.Action, len(s.actions))
	copy(out, s.actions)
	return out
}

// Count returns the number of recorded actions of kind.
func (s *RecordingSender) Count(kind remote.ActionKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// MoveSum returns the total displacement of every recorded move.
func (s *RecordingSender) MoveSum() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dx, dy float64
	for _, a := range s.actions {
		if a.Kind == remote.ActMove {
			dx += a.DX
			dy += a.DY
		}
	}
	return dx, dy
}

// Reset forgets recorded actions.
func (s *RecordingSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = nil
}

package control

import (
	"sync"
	"time"

	"github.com/frudas24/livecontrol/internal/clock"
)

// MoveThrottle is the default minimum interval between two move sends.
const MoveThrottle = 50 * time.Millisecond

// ThrottleState describes what a Throttler currently holds.
type ThrottleState int

const (
	// StateIdle has no pending delta and no armed timer.
	StateIdle ThrottleState = iota
	// StateAccumulating has a pending delta and no armed timer.
	StateAccumulating
	// StateScheduled has a pending delta and one armed flush timer.
	StateScheduled
)

// String returns the state name.
func (s ThrottleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateScheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

// ThrottleStats counts throttler activity.
type ThrottleStats struct {
	Samples     int
	Flushes     int
	TimersArmed int
}

// Throttler sums move deltas and sends them at most once per interval.
// At most one deferred flush is armed at any time; samples arriving while it is armed only add to the pending delta.
// The send func is called with the lock held and must not block.
type Throttler struct {
	mu        sync.Mutex
	clock     clock.Clock
	interval  time.Duration
	send      func(dx, dy float64)
	dx        float64
	dy        float64
	lastFlush time.Time
	timer     clock.Timer
	gen       uint64
	closed    bool
	stats     ThrottleStats
}

// NewThrottler creates a throttler sending through send. A nil clock selects the system clock.
func NewThrottler(interval time.Duration, clk clock.Clock, send func(dx, dy float64)) *Throttler {
	if interval <= 0 {
		interval = MoveThrottle
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Throttler{clock: clk, interval: interval, send: send}
}

// Add merges a move sample into the pending delta and flushes or schedules as the interval allows.
func (t *Throttler) Add(dx, dy float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.stats.Samples++
	t.dx += dx
	t.dy += dy
	if t.timer != nil {
		return
	}
	if t.dx == 0 && t.dy == 0 {
		return
	}
	now := t.clock.Now()
	elapsed := now.Sub(t.lastFlush)
	if t.lastFlush.IsZero() || elapsed >= t.interval {
		t.flushLocked()
		return
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.interval-elapsed, func() { t.fire(gen) })
	t.stats.TimersArmed++
}

// Flush cancels any armed timer and sends the pending delta now. A zero delta sends nothing.
func (t *Throttler) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.cancelLocked()
	t.flushLocked()
}

// End marks the end of a gesture: the residual delta is sent immediately.
func (t *Throttler) End() {
	t.Flush()
}

// Close cancels any armed timer and discards the pending delta. Later samples are ignored.
func (t *Throttler) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.dx, t.dy = 0, 0
	t.closed = true
}

// State reports the current state.
func (t *Throttler) State() ThrottleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.timer != nil:
		return StateScheduled
	case t.dx != 0 || t.dy != 0:
		return StateAccumulating
	default:
		return StateIdle
	}
}

// Pending returns the delta not yet sent.
func (t *Throttler) Pending() (float64, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dx, t.dy
}

// Stats returns activity counters.
func (t *Throttler) Stats() ThrottleStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// fire runs a deferred flush unless it was cancelled after being armed.
func (t *Throttler) fire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.timer == nil {
		return
	}
	t.timer = nil
	t.flushLocked()
}

// cancelLocked stops the armed timer, if any.
func (t *Throttler) cancelLocked() {
	if t.timer == nil {
		return
	}
	t.timer.Stop()
	t.timer = nil
	t.gen++
}

// flushLocked sends and resets the pending delta.
func (t *Throttler) flushLocked() {
	if t.dx == 0 && t.dy == 0 {
		return
	}
	dx, dy := t.dx, t.dy
	t.dx, t.dy = 0, 0
	t.lastFlush = t.clock.Now()
	t.stats.Flushes++
	if t.send != nil {
		t.send(dx, dy)
	}
}

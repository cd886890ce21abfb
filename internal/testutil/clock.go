// Package testutil provides fakes shared by package tests.
package testutil

import (
	"sync"
	"time"

	"github.com/frudas24/livecontrol/internal/clock"
)

// FakeClock is a manually advanced clock. Timer callbacks run synchronously inside Advance.
type FakeClock struct {
	mu        sync.Mutex
	now       time.Time
	timers    []*fakeTimer
	created   int
	maxActive int
}

// fakeTimer is a pending callback on a FakeClock.
type fakeTimer struct {
	c      *FakeClock
	at     time.Time
	fn     func()
	active bool
}

var _ clock.Clock = (*FakeClock)(nil)

// NewFakeClock returns a clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run once the clock has advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), fn: fn, active: true}
	c.timers = append(c.timers, t)
	c.created++
	if n := c.activeLocked(); n > c.maxActive {
		c.maxActive = n
	}
	return t
}

// Advance moves time forward by d, firing due timers in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		c.now = next.at
		next.active = false
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.pruneLocked()
	c.mu.Unlock()
}

// ActiveTimers returns the number of armed timers.
func (c *FakeClock) ActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

// MaxActiveTimers returns the highest number of simultaneously armed timers seen.
func (c *FakeClock) MaxActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxActive
}

// TimersCreated returns how many timers were ever armed.
func (c *FakeClock) TimersCreated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

// Stop disarms the timer and reports whether it was still pending.
func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

// nextDueLocked returns the earliest armed timer due at or before target.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range c.timers {
		if !t.active || t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) {
			next = t
		}
	}
	return next
}

// activeLocked counts armed timers.
func (c *FakeClock) activeLocked() int {
	n := 0
	for _, t := range c.timers {
		if t.active {
			n++
		}
	}
	return n
}

// pruneLocked drops fired and stopped timers.
func (c *FakeClock) pruneLocked() {
	kept := c.timers[:0]
	for _, t := range c.timers {
		if t.active {
			kept = append(kept, t)
		}
	}
	c.timers = kept
}

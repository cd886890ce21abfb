package control

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/frudas24/livecontrol/internal/clock"
	"github.com/frudas24/livecontrol/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// sends records throttler output.
type sends struct {
	mu  sync.Mutex
	got [][2]float64
}

// add records one flush.
func (s *sends) add(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, [2]float64{dx, dy})
}

// count returns the number of flushes.
func (s *sends) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

// last returns the most recent flush.
func (s *sends) last() [2]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[len(s.got)-1]
}

// sum returns the total of every flush.
func (s *sends) sum() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dx, dy float64
	for _, d := range s.got {
		dx += d[0]
		dy += d[1]
	}
	return dx, dy
}

// newTestThrottler returns a throttler on a fake clock with a 50ms interval.
func newTestThrottler() (*Throttler, *testutil.FakeClock, *sends) {
	clk := testutil.NewFakeClock(epoch)
	out := &sends{}
	return NewThrottler(50*time.Millisecond, clk, out.add), clk, out
}

// TestThrottler_FirstSampleFlushesImmediately verifies the first move goes out without waiting.
func TestThrottler_FirstSampleFlushesImmediately(t *testing.T) {
	th, clk, out := newTestThrottler()
	th.Add(0.1, -0.05)
	if out.count() != 1 {
		t.Fatalf("expected 1 send, got %d", out.count())
	}
	if got := out.last(); got != [2]float64{0.1, -0.05} {
		t.Fatalf("unexpected delta: %v", got)
	}
	if th.State() != StateIdle || clk.ActiveTimers() != 0 {
		t.Fatalf("expected idle with no timer, got %s with %d timers", th.State(), clk.ActiveTimers())
	}
}

// TestThrottler_SamplesWithinIntervalAreMerged verifies samples inside the window are summed into one deferred send.
func TestThrottler_SamplesWithinIntervalAreMerged(t *testing.T) {
	th, clk, out := newTestThrottler()
	th.Add(0.1, 0)

	clk.Advance(10 * time.Millisecond)
	th.Add(0.1, 0.2)
	th.Add(0.2, -0.1)
	if out.count() != 1 {
		t.Fatalf("expected no extra send inside the window, got %d", out.count())
	}
	if th.State() != StateScheduled {
		t.Fatalf("expected scheduled, got %s", th.State())
	}
	if clk.ActiveTimers() != 1 || clk.TimersCreated() != 1 {
		t.Fatalf("expected exactly one timer, got active=%d created=%d", clk.ActiveTimers(), clk.TimersCreated())
	}

	clk.Advance(40 * time.Millisecond)
	if out.count() != 2 {
		t.Fatalf("expected deferred send, got %d sends", out.count())
	}
	got := out.last()
	if !near(got[0], 0.3) || !near(got[1], 0.1) {
		t.Fatalf("expected merged delta (0.3,0.1), got %v", got)
	}
	if th.State() != StateIdle {
		t.Fatalf("expected idle after timer flush, got %s", th.State())
	}
}

// TestThrottler_TimerIsNotExtended verifies later samples do not push the deadline back.
func TestThrottler_TimerIsNotExtended(t *testing.T) {
	th, clk, out := newTestThrottler()
	th.Add(1, 0)
	clk.Advance(10 * time.Millisecond)
	th.Add(1, 0)
	clk.Advance(30 * time.Millisecond)
	th.Add(1, 0)
	clk.Advance(9 * time.Millisecond)
	if out.count() != 1 {
		t.Fatalf("expected timer still pending at 49ms, got %d sends", out.count())
	}
	clk.Advance(1 * time.Millisecond)
	if out.count() != 2 {
		t.Fatalf("expected timer to fire at its original deadline, got %d sends", out.count())
	}
	if got := out.last(); got[0] != 2 {
		t.Fatalf("expected both samples in the deferred send, got %v", got)
	}
	if clk.TimersCreated() != 1 {
		t.Fatalf("expected a single timer, got %d", clk.TimersCreated())
	}
}

// TestThrottler_EndFlushesResidualOnce verifies gesture end sends the residual exactly once and cancels the timer.
func TestThrottler_EndFlushesResidualOnce(t *testing.T) {
	th, clk, out := newTestThrottler()
	th.Add(0.5, 0)
	clk.Advance(5 * time.Millisecond)
	th.Add(0.02, 0.03)

	th.End()
	if out.count() != 2 {
		t.Fatalf("expected residual flush on end, got %d sends", out.count())
	}
	if got := out.last(); !near(got[0], 0.02) || !near(got[1], 0.03) {
		t.Fatalf("unexpected residual: %v", got)
	}
	if clk.ActiveTimers() != 0 {
		t.Fatalf("expected timer cancelled, got %d active", clk.ActiveTimers())
	}

	clk.Advance(time.Second)
	if out.count() != 2 {
		t.Fatalf("expected no send after end, got %d", out.count())
	}
}

// TestThrottler_ZeroFlushSendsNothing verifies flushing an empty accumulator is a no-op.
func TestThrottler_ZeroFlushSendsNothing(t *testing.T) {
	th, _, out := newTestThrottler()
	th.Flush()
	th.End()
	if out.count() != 0 {
		t.Fatalf("expected no sends, got %d", out.count())
	}
	th.Add(0, 0)
	if out.count() != 0 || th.State() != StateIdle {
		t.Fatalf("expected zero sample to stay idle, got %d sends in %s", out.count(), th.State())
	}
}

// TestThrottler_CloseDiscards verifies teardown drops pending motion and ignores later samples.
func TestThrottler_CloseDiscards(t *testing.T) {
	th, clk, out := newTestThrottler()
	th.Add(1, 1)
	th.Add(1, 1)
	th.Close()
	clk.Advance(time.Second)
	th.Add(1, 1)
	th.End()
	if out.count() != 1 {
		t.Fatalf("expected only the first send, got %d", out.count())
	}
	if clk.ActiveTimers() != 0 {
		t.Fatalf("expected no armed timer after close")
	}
}

// TestThrottler_ConservesDisplacementAndBoundsRate drives a long jittery gesture and checks both core properties.
func TestThrottler_ConservesDisplacementAndBoundsRate(t *testing.T) {
	th, clk, out := newTestThrottler()
	rng := rand.New(rand.NewSource(7))

	var wantX, wantY float64
	start := clk.Now()
	for i := 0; i < 500; i++ {
		dx := rng.Float64()*0.02 - 0.01
		dy := rng.Float64()*0.02 - 0.01
		wantX += dx
		wantY += dy
		th.Add(dx, dy)
		clk.Advance(time.Duration(1+rng.Intn(6)) * time.Millisecond)
		if n := clk.ActiveTimers(); n > 1 {
			t.Fatalf("expected at most one timer, got %d", n)
		}
	}
	th.End()
	elapsed := clk.Now().Sub(start)

	gotX, gotY := out.sum()
	if math.Abs(gotX-wantX) > 1e-9 || math.Abs(gotY-wantY) > 1e-9 {
		t.Fatalf("expected displacement (%v,%v), got (%v,%v)", wantX, wantY, gotX, gotY)
	}
	bound := int(math.Ceil(float64(elapsed)/float64(50*time.Millisecond))) + 1
	if out.count() > bound {
		t.Fatalf("expected at most %d sends over %s, got %d", bound, elapsed, out.count())
	}
	if clk.MaxActiveTimers() > 1 {
		t.Fatalf("expected at most one concurrent timer, saw %d", clk.MaxActiveTimers())
	}
	if th.Stats().Samples != 500 {
		t.Fatalf("expected 500 samples, got %d", th.Stats().Samples)
	}
}

// TestThrottler_StaleTimerAfterEnd verifies a real timer cancelled by End never sends.
func TestThrottler_StaleTimerAfterEnd(t *testing.T) {
	out := &sends{}
	th := NewThrottler(20*time.Millisecond, clock.System{}, out.add)
	th.Add(1, 0)
	th.Add(1, 0)
	th.End()
	time.Sleep(60 * time.Millisecond)
	if out.count() != 2 {
		t.Fatalf("expected 2 sends, got %d", out.count())
	}
}

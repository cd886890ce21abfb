package control

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/frudas24/livecontrol/internal/clock"
	"github.com/frudas24/livecontrol/internal/remote"
	"github.com/frudas24/livecontrol/internal/session"
	"github.com/frudas24/livecontrol/internal/stream"
)

// Sender dispatches remote actions without blocking.
type Sender interface {
	Dispatch(a remote.Action)
}

// RelayOptions tunes a Relay. Zero values select defaults.
type RelayOptions struct {
	Interval time.Duration
	Clock    clock.Clock
}

// Relay turns the gestures of one input surface into remote commands.
// Local cursor feedback follows every sample; move commands are batched by a Throttler.
type Relay struct {
	mu       sync.Mutex
	session  *session.Session
	sender   Sender
	throttle *Throttler
	surface  Rect
	last     *NormalizedPoint
	onCursor func(NormalizedPoint)
}

// NewRelay creates a relay for one surface.
func NewRelay(sess *session.Session, sender Sender, opts RelayOptions) *Relay {
	r := &Relay{session: sess, sender: sender}
	r.throttle = NewThrottler(opts.Interval, opts.Clock, r.sendMove)
	return r
}

// OnCursor registers a callback receiving every mapped position.
func (r *Relay) OnCursor(fn func(NormalizedPoint)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCursor = fn
}

// SetSurface updates the bounding box used to map coordinates.
func (r *Relay) SetSurface(rect Rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface = rect
}

// Down starts a gesture at the event position.
func (r *Relay) Down(ev PointerEvent) {
	p := r.track(ev)
	r.mu.Lock()
	r.last = &p
	r.mu.Unlock()
}

// Move feeds one pointer sample. Mouse samples only count while the primary button is held.
// While the session is unusable the cursor still follows but nothing is accumulated.
func (r *Relay) Move(ev PointerEvent) {
	if len(ev.Touches) == 0 && ev.Buttons != 1 {
		return
	}
	p := r.track(ev)

	r.mu.Lock()
	prev := r.last
	r.last = &p
	r.mu.Unlock()

	if prev == nil || !r.session.Usable() {
		return
	}
	r.throttle.Add(p.X-prev.X, p.Y-prev.Y)
}

// End finishes the gesture and sends any residual motion immediately.
func (r *Relay) End() {
	r.mu.Lock()
	r.last = nil
	r.mu.Unlock()
	r.throttle.End()
}

// Click sends a click action at the remote cursor. It reports false when the session is unusable.
// Pending motion is flushed first so the click lands where the cursor was moved to.
func (r *Relay) Click(kind remote.ActionKind) bool {
	if !r.session.Usable() {
		if debugEnabled() {
			log.Printf("control: %s ignored while offline", kind)
		}
		return false
	}
	r.throttle.Flush()
	r.sender.Dispatch(remote.Action{Kind: kind})
	r.session.SetLastAction(string(kind))
	return true
}

// Throttler exposes the relay's throttler.
func (r *Relay) Throttler() *Throttler {
	return r.throttle
}

// Close discards pending motion and cancels the throttle timer.
func (r *Relay) Close() {
	r.throttle.Close()
}

// track maps ev onto the surface and publishes the cursor position.
func (r *Relay) track(ev PointerEvent) NormalizedPoint {
	r.mu.Lock()
	p := MapPosition(ev, r.surface)
	fn := r.onCursor
	r.mu.Unlock()

	r.session.SetCursor(p.X, p.Y)
	if fn != nil {
		fn(p)
	}
	return p
}

// sendMove is the throttler's sink. It runs under the throttler lock and must not block.
func (r *Relay) sendMove(dx, dy float64) {
	r.sender.Dispatch(remote.Move(dx, dy))
	r.session.SetLastAction(string(remote.ActMove))
}

// ErrUnknownMessage reports a message type no handler accepts.
var ErrUnknownMessage = errors.New("unknown message type")

// Hooks connects control messages that affect the whole app rather than one surface.
type Hooks struct {
	SetStream func(stream.Update) error
	FeedError func(reason string)
}

// Apply routes one protocol message to the relay, the session, or the hooks.
func Apply(r *Relay, sess *session.Session, hooks Hooks, msg Message) error {
	if debugEnabled() {
		log.Printf("control: recv %s", msg.T)
	}
	switch msg.T {
	case "surface":
		if msg.Rect != nil {
			r.SetSurface(*msg.Rect)
		}
	case "down":
		r.Down(msg.Event())
	case "move":
		r.Move(msg.Event())
	case "up", "leave", "cancel":
		r.End()
	case "tap", "doubletap", "rightclick":
		kind, _ := remote.ParseActionKind(msg.T)
		r.Click(kind)
	case "inputEnabled":
		if msg.Enabled != nil {
			sess.SetInputEnabled(*msg.Enabled)
		}
	case "setStream":
		if msg.Stream == nil || hooks.SetStream == nil {
			return nil
		}
		return hooks.SetStream(*msg.Stream)
	case "feedError":
		if hooks.FeedError != nil {
			hooks.FeedError(msg.Error)
		}
	default:
		return ErrUnknownMessage
	}
	return nil
}

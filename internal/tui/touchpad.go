// Package tui turns a terminal into a touchpad input surface.
package tui

import (
	"context"
	"fmt"
	"sync"

	"github.com/frudas24/livecontrol/internal/control"
	"github.com/frudas24/livecontrol/internal/remote"
	"github.com/frudas24/livecontrol/internal/session"
	"github.com/frudas24/livecontrol/internal/stream"
	"github.com/gdamore/tcell/v2"
)

const helpText = "t tap  d double  r right  +/- quality  f/F fps  s/S scale  c cursor  i input  q quit"

// Touchpad drives a control relay from terminal mouse drags and key presses.
// Every row but the last is the surface; the last row is the status line.
type Touchpad struct {
	mu        sync.Mutex
	screen    tcell.Screen
	session   *session.Session
	relay     *control.Relay
	setStream func(stream.Update) error
	dragging  bool
	notice    string
}

// New creates a touchpad on an initialized screen. setStream applies stream changes; nil stores them on the session only.
func New(screen tcell.Screen, sess *session.Session, sender control.Sender, opts control.RelayOptions, setStream func(stream.Update) error) *Touchpad {
	t := &Touchpad{
		screen:    screen,
		session:   sess,
		relay:     control.NewRelay(sess, sender, opts),
		setStream: setStream,
	}
	t.relay.OnCursor(func(control.NormalizedPoint) {
		_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	t.resize()
	return t
}

// Run processes terminal events until q is pressed or ctx is done.
func (t *Touchpad) Run(ctx context.Context) error {
	t.screen.EnableMouse()
	defer t.relay.Close()

	updates, cancel := t.session.Subscribe()
	defer cancel()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				_ = t.screen.PostEvent(tcell.NewEventInterrupt(ctx.Err()))
				return
			case <-updates:
				_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
			}
		}
	}()

	t.Draw()
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if intr, ok := ev.(*tcell.EventInterrupt); ok && intr.Data() != nil {
			return nil
		}
		if quit := t.HandleEvent(ev); quit {
			return nil
		}
		t.Draw()
	}
}

// HandleEvent applies one terminal event and reports whether the touchpad should quit.
func (t *Touchpad) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.resize()
		t.screen.Sync()
	case *tcell.EventMouse:
		t.handleMouse(ev)
	case *tcell.EventKey:
		return t.handleKey(ev)
	}
	return false
}

// handleMouse maps primary-button drags onto gestures.
func (t *Touchpad) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	pressed := ev.Buttons()&tcell.Button1 != 0
	pe := control.PointerEvent{Client: &control.ClientPoint{X: float64(x), Y: float64(y)}}

	t.mu.Lock()
	dragging := t.dragging
	t.dragging = pressed
	t.mu.Unlock()

	switch {
	case pressed && !dragging:
		pe.Buttons = 1
		t.relay.Down(pe)
	case pressed:
		pe.Buttons = 1
		t.relay.Move(pe)
	case dragging:
		t.relay.End()
	}
}

// handleKey runs the action bound to a key.
func (t *Touchpad) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
	default:
		return false
	}

	cur := t.session.Stream()
	switch ev.Rune() {
	case 'q':
		return true
	case 't':
		t.click(remote.ActTap)
	case 'd':
		t.click(remote.ActDoubleTap)
	case 'r':
		t.click(remote.ActSecondaryClick)
	case 'i':
		t.session.SetInputEnabled(!t.session.InputEnabled())
	case '+', '=':
		t.applyStream(cur.WithQuality(cur.Quality + stream.StepQuality))
	case '-':
		t.applyStream(cur.WithQuality(cur.Quality - stream.StepQuality))
	case 'f':
		t.applyStream(cur.WithFPS(cur.FPS + stream.StepFPS))
	case 'F':
		t.applyStream(cur.WithFPS(cur.FPS - stream.StepFPS))
	case 's':
		t.applyStream(cur.WithScalePct(cur.ScalePct + stream.StepScalePct))
	case 'S':
		t.applyStream(cur.WithScalePct(cur.ScalePct - stream.StepScalePct))
	case 'c':
		t.applyStream(cur.NextCursor())
	}
	return false
}

// click dispatches a click, noting when the host cannot take input.
func (t *Touchpad) click(kind remote.ActionKind) {
	if t.relay.Click(kind) {
		t.setNotice("")
		return
	}
	t.setNotice(fmt.Sprintf("%s ignored: host offline or input disabled", kind))
}

// applyStream submits c as a full stream update.
func (t *Touchpad) applyStream(c stream.Config) {
	if t.setStream == nil {
		t.session.SetStream(c, true)
		return
	}
	u := stream.Update{FPS: &c.FPS, Quality: &c.Quality, ScalePct: &c.ScalePct, Cursor: &c.Cursor}
	if err := t.setStream(u); err != nil {
		t.setNotice(err.Error())
		return
	}
	t.setNotice("")
}

// setNotice replaces the transient message shown on the status line.
func (t *Touchpad) setNotice(s string) {
	t.mu.Lock()
	t.notice = s
	t.mu.Unlock()
}

// resize makes the whole pad area the relay surface.
func (t *Touchpad) resize() {
	w, h := t.screen.Size()
	t.relay.SetSurface(control.Rect{
		Width:  float64(max(w-1, 1)),
		Height: float64(max(h-2, 1)),
	})
}

// Draw renders the cursor indicator and the status line. A pending notice replaces the key help.
func (t *Touchpad) Draw() {
	t.screen.Clear()
	w, h := t.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}
	snap := t.session.Snapshot()

	cx := int(snap.Cursor.X*float64(max(w-1, 1)) + 0.5)
	cy := int(snap.Cursor.Y*float64(max(h-2, 1)) + 0.5)
	style := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	if !snap.Usable() {
		style = style.Foreground(tcell.ColorGray)
	}
	t.screen.SetContent(cx, cy, '+', nil, style)

	t.mu.Lock()
	notice := t.notice
	t.mu.Unlock()
	line := StatusLine(snap) + " | "
	if notice != "" {
		line += notice
	} else {
		line += helpText
	}
	t.drawText(0, h-1, line, tcell.StyleDefault.Reverse(true))
	t.screen.Show()
}

// drawText writes s from (x, y), clipped at the screen edge.
func (t *Touchpad) drawText(x, y int, s string, style tcell.Style) {
	w, _ := t.screen.Size()
	for _, r := range s {
		if x >= w {
			return
		}
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// StatusLine summarizes connection, stream, and input state in one line.
func StatusLine(snap session.Snapshot) string {
	conn := "offline"
	if snap.Conn.Online {
		conn = "online"
	}
	if snap.Conn.HasInfo {
		conn += fmt.Sprintf(" %dx%d", snap.Conn.Info.ScreenWidth, snap.Conn.Info.ScreenHeight)
	}
	input := "on"
	if !snap.InputEnabled {
		input = "off"
	}
	last := snap.LastAction
	if last == "" {
		last = "-"
	}
	s := snap.Stream
	return fmt.Sprintf("%s | %dfps q%d %d%% %s | input %s | last %s",
		conn, s.FPS, s.Quality, s.ScalePct, s.Cursor, input, last)
}

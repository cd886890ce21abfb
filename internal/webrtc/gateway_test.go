package webrtc

import (
	"testing"

	"github.com/frudas24/livecontrol/internal/control"
	"github.com/frudas24/livecontrol/internal/remote"
	"github.com/frudas24/livecontrol/internal/session"
	"github.com/frudas24/livecontrol/internal/stream"
	"github.com/frudas24/livecontrol/internal/testutil"
)

// newTestGateway returns a gateway over an online session with a recording sender.
func newTestGateway(t *testing.T, hooks control.Hooks) (*Gateway, *session.Session, *testutil.RecordingSender) {
	t.Helper()
	sess := session.New(nil)
	sess.SetConn(remote.ConnState{Online: true})
	sender := &testutil.RecordingSender{}
	g, err := NewGateway(sess, sender, "http://host", control.RelayOptions{}, hooks)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g, sess, sender
}

// TestHandleData_Click verifies a data channel click reaches the sender.
func TestHandleData_Click(t *testing.T) {
	g, sess, sender := newTestGateway(t, control.Hooks{})
	relay := control.NewRelay(sess, sender, control.RelayOptions{})
	defer relay.Close()

	if err := g.handleData(relay, []byte(`{"t":"doubletap"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sender.Count(remote.ActDoubleTap) != 1 {
		t.Fatalf("expected a double tap, got %+v", sender.Actions())
	}
}

// TestHandleData_BadJSON verifies undecodable payloads are errors.
func TestHandleData_BadJSON(t *testing.T) {
	g, sess, sender := newTestGateway(t, control.Hooks{})
	relay := control.NewRelay(sess, sender, control.RelayOptions{})
	defer relay.Close()

	if err := g.handleData(relay, []byte(`{"t":`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := g.handleData(relay, []byte(`{"t":"wheel"}`)); err != nil {
		t.Fatalf("expected unknown types to be ignored, got %v", err)
	}
}

// TestHandleData_StreamHook verifies stream updates go through the hook.
func TestHandleData_StreamHook(t *testing.T) {
	var got stream.Update
	g, sess, sender := newTestGateway(t, control.Hooks{SetStream: func(u stream.Update) error {
		got = u
		return nil
	}})
	relay := control.NewRelay(sess, sender, control.RelayOptions{})
	defer relay.Close()

	if err := g.handleData(relay, []byte(`{"t":"setStream","stream":{"fps":30}}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got.FPS == nil || *got.FPS != 30 {
		t.Fatalf("expected fps update, got %+v", got)
	}
}

// TestNewPeer_ReplacesPrevious verifies only one peer connection is kept.
func TestNewPeer_ReplacesPrevious(t *testing.T) {
	g, _, _ := newTestGateway(t, control.Hooks{})
	first, err := g.NewPeer()
	if err != nil {
		t.Fatalf("new peer: %v", err)
	}
	second, err := g.NewPeer()
	if err != nil {
		t.Fatalf("new peer: %v", err)
	}
	defer g.ClosePeer()
	if first == second {
		t.Fatalf("expected a fresh peer")
	}
	if _, err := first.CreateDataChannel(InputLabel, nil); err == nil {
		t.Fatalf("expected first peer to be closed")
	}
}

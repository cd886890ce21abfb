package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frudas24/livecontrol/internal/control"
	"github.com/frudas24/livecontrol/internal/remote"
	"github.com/frudas24/livecontrol/internal/session"
	"github.com/frudas24/livecontrol/internal/testutil"
	gw "github.com/frudas24/livecontrol/internal/webrtc"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// newTestServer returns a signaling server backed by a gateway over an online session.
func newTestServer(t *testing.T, policy ClientPolicy) (*Server, *testutil.RecordingSender) {
	t.Helper()
	sess := session.New(nil)
	sess.SetConn(remote.ConnState{Online: true})
	sender := &testutil.RecordingSender{}
	g, err := gw.NewGateway(sess, sender, "http://host", control.RelayOptions{}, control.Hooks{})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	t.Cleanup(g.ClosePeer)
	return NewServer(g, policy, func() bool { return true }), sender
}

// wsURL converts an httptest URL into a websocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// TestServer_Unauthorized verifies signaling requires login.
func TestServer_Unauthorized(t *testing.T) {
	srv := NewServer(nil, ClientReject, func() bool { return false })
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/signal", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// TestServer_RejectPolicy verifies a second input client is refused while one is active.
func TestServer_RejectPolicy(t *testing.T) {
	srv, _ := newTestServer(t, ClientReject)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer func() { _ = first.Close() }()
	time.Sleep(50 * time.Millisecond)

	second, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer func() { _ = second.Close() }()
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = second.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

// TestServer_NotifyHost verifies the connected client hears host reachability changes.
func TestServer_NotifyHost(t *testing.T) {
	srv, _ := newTestServer(t, ClientReplace)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = ws.Close() }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		ready := srv.active != nil && srv.active.peer != nil
		srv.mu.Unlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for client")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.NotifyHost(false)
	srv.NotifyHost(true)
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []string
	for len(got) < 2 {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, msg.T)
	}
	if got[0] != TypeHostOffline || got[1] != TypeHostOnline {
		t.Fatalf("expected hostOffline then hostOnline, got %v", got)
	}
}

// TestServer_DataChannelInput negotiates a real peer and sends a tap over the input channel.
func TestServer_DataChannelInput(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates a real peer connection")
	}
	srv, sender := newTestServer(t, ClientReplace)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = ws.Close() }()

	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("client peer: %v", err)
	}
	defer func() { _ = client.Close() }()

	dc, err := client.CreateDataChannel(gw.InputLabel, nil)
	if err != nil {
		t.Fatalf("data channel: %v", err)
	}
	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })

	offer, err := client.CreateOffer(nil)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	gathered := webrtc.GatheringCompletePromise(client)
	if err := client.SetLocalDescription(offer); err != nil {
		t.Fatalf("set local: %v", err)
	}
	<-gathered
	if err := ws.WriteJSON(Message{T: TypeOffer, SDP: client.LocalDescription().SDP}); err != nil {
		t.Fatalf("send offer: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read answer: %v", err)
		}
		if msg.T != TypeAnswer {
			continue
		}
		if err := client.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}); err != nil {
			t.Fatalf("set remote: %v", err)
		}
		break
	}

	select {
	case <-opened:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for data channel")
	}
	if err := dc.SendText(`{"t":"tap"}`); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for sender.Count(remote.ActTap) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for tap")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

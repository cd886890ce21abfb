package webrtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/frudas24/livecontrol/internal/control"
	"github.com/frudas24/livecontrol/internal/session"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// InputLabel is the data channel label carrying control messages.
const InputLabel = "input"

// Gateway manages the WebRTC peer connection whose data channel feeds an input relay.
type Gateway struct {
	mu      sync.Mutex
	api     *webrtc.API
	peer    *webrtc.PeerConnection
	session *session.Session
	sender  control.Sender
	opts    control.RelayOptions
	hooks   control.Hooks
	hostURL string
}

// NewGateway initializes a WebRTC gateway with default codecs/interceptors.
func NewGateway(sess *session.Session, sender control.Sender, hostBase string, opts control.RelayOptions, hooks control.Hooks) (*Gateway, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptors := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, interceptors); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(media),
		webrtc.WithInterceptorRegistry(interceptors),
	)

	return &Gateway{
		api:     api,
		session: sess,
		sender:  sender,
		opts:    opts,
		hooks:   hooks,
		hostURL: hostBase,
	}, nil
}

// NewPeer creates a new peer connection, replacing the previous one, and accepts input channels on it.
func (g *Gateway) NewPeer() (*webrtc.PeerConnection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.peer != nil {
		_ = g.peer.Close()
		g.peer = nil
	}

	peer, err := g.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}
	peer.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != InputLabel {
			if debugChannelEnabled() {
				log.Printf("webrtc: ignoring data channel %q", dc.Label())
			}
			return
		}
		g.bind(dc)
	})
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("webrtc: peer %s", state)
	})

	g.peer = peer
	return peer, nil
}

// ClosePeer closes the current peer connection.
func (g *Gateway) ClosePeer() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.peer != nil {
		_ = g.peer.Close()
		g.peer = nil
	}
}

// bind attaches a fresh input relay to an input data channel for its lifetime.
func (g *Gateway) bind(dc *webrtc.DataChannel) {
	relay := control.NewRelay(g.session, g.sender, g.opts)
	relay.OnCursor(func(p control.NormalizedPoint) {
		_ = sendJSON(dc, control.CursorMessage{T: "cursor", X: p.X, Y: p.Y})
	})

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	dc.OnOpen(func() {
		log.Printf("webrtc: input channel open")
		updates, cancel := g.session.Subscribe()
		_ = sendJSON(dc, control.NewStatus(g.session.Snapshot(), g.hostURL))
		go func() {
			defer cancel()
			for {
				select {
				case <-done:
					return
				case snap := <-updates:
					if err := sendJSON(dc, control.NewStatus(snap, g.hostURL)); err != nil {
						return
					}
				}
			}
		}()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if err := g.handleData(relay, msg.Data); err != nil {
			_ = sendJSON(dc, control.ErrorMessage{T: "error", Error: err.Error()})
		}
	})
	dc.OnClose(func() {
		log.Printf("webrtc: input channel closed")
		stop()
		relay.Close()
	})
}

// handleData decodes one control message and applies it to relay.
func (g *Gateway) handleData(relay *control.Relay, data []byte) error {
	var msg control.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	err := control.Apply(relay, g.session, g.hooks, msg)
	if errors.Is(err, control.ErrUnknownMessage) {
		return nil
	}
	return err
}

// sendJSON writes v as a text message on dc.
func sendJSON(dc *webrtc.DataChannel, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return dc.SendText(string(data))
}

package signaling

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// ClientPolicy decides what happens when a second input client connects.
type ClientPolicy int

const (
	// ClientReject refuses the newcomer while a client is connected.
	ClientReject ClientPolicy = iota
	// ClientReplace drops the connected client in favor of the newcomer.
	ClientReplace
)

var errNotActive = errors.New("input client no longer active")

// PeerFactory creates the peer connection whose data channels carry input.
type PeerFactory interface {
	NewPeer() (*webrtc.PeerConnection, error)
}

// link is one input client: its socket, its peer, and a write lock for the socket.
type link struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	peer    *webrtc.PeerConnection
}

// send writes msg on the link's socket.
func (l *link) send(msg Message) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return l.conn.WriteJSON(msg)
}

// Server negotiates input peer connections for one client at a time.
type Server struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	peers    PeerFactory
	policy   ClientPolicy
	authFn   func() bool
	active   *link
}

// NewServer creates a signaling server with the chosen client policy and auth function.
func NewServer(peers PeerFactory, policy ClientPolicy, authFn func() bool) *Server {
	return &Server{
		peers:  peers,
		policy: policy,
		authFn: authFn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request, creates an input peer, and answers its offers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.authFn != nil && !s.authFn() {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	l := &link{id: uuid.NewString(), conn: conn}
	if err := s.admit(l); err != nil {
		refuse(conn, err.Error())
		return
	}
	defer s.release(l)
	log.Printf("signal: client %s connected", l.id)

	peer, err := s.peers.NewPeer()
	if err != nil {
		log.Printf("signal: new peer: %v", err)
		return
	}
	if err := s.bindPeer(l, peer); err != nil {
		_ = peer.Close()
		return
	}
	peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		_ = s.sendIfActive(l, ICEMessage(c.ToJSON()))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("signal: client %s disconnected", l.id)
			return
		}
		if err := s.handle(l, msg); err != nil {
			log.Printf("signal: %s: %v", msg.T, err)
			return
		}
	}
}

// NotifyHost tells the connected client whether the host accepts input.
func (s *Server) NotifyHost(online bool) {
	s.mu.Lock()
	l := s.active
	s.mu.Unlock()
	if l == nil {
		return
	}
	_ = s.sendIfActive(l, HostMessage(online))
}

// admit makes l the active client according to the policy.
func (s *Server) admit(l *link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev := s.active; prev != nil {
		if s.policy != ClientReplace {
			return errors.New("input client already connected")
		}
		log.Printf("signal: replacing client %s", prev.id)
		_ = prev.conn.Close()
	}
	s.active = l
	return nil
}

// refuse sends a policy violation close and closes the socket.
func refuse(conn *websocket.Conn, reason string) {
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	_ = conn.Close()
}

// bindPeer attaches peer to l while l is still the active client.
func (s *Server) bindPeer(l *link, peer *webrtc.PeerConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != l {
		return errNotActive
	}
	l.peer = peer
	return nil
}

// release closes l and forgets it if it is still the active client.
func (s *Server) release(l *link) {
	s.mu.Lock()
	if s.active == l {
		s.active = nil
	}
	peer := l.peer
	l.peer = nil
	s.mu.Unlock()
	if peer != nil {
		_ = peer.Close()
	}
	_ = l.conn.Close()
}

// handle applies one client message. Unknown types are ignored.
func (s *Server) handle(l *link, msg Message) error {
	s.mu.Lock()
	peer := l.peer
	s.mu.Unlock()
	if peer == nil {
		return errNotActive
	}
	switch msg.T {
	case TypeOffer:
		return s.answer(l, peer, msg.SDP)
	case TypeICE:
		if msg.Candidate == nil {
			return nil
		}
		return peer.AddICECandidate(*msg.Candidate)
	default:
		return nil
	}
}

// answer applies an offer and replies once ICE gathering completes.
func (s *Server) answer(l *link, peer *webrtc.PeerConnection, sdp string) error {
	if sdp == "" {
		return errors.New("empty offer")
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := peer.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote: %w", err)
	}
	answer, err := peer.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local: %w", err)
	}
	<-gathered
	local := peer.LocalDescription()
	if local == nil {
		return errors.New("missing local description")
	}
	return s.sendIfActive(l, AnswerMessage(local.SDP))
}

// sendIfActive writes msg to l unless it has been replaced or released.
func (s *Server) sendIfActive(l *link, msg Message) error {
	s.mu.Lock()
	active := s.active == l
	s.mu.Unlock()
	if !active {
		return errNotActive
	}
	return l.send(msg)
}

package control

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/frudas24/livecontrol/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Server handles websocket control input. Only one connection is active; a new one replaces it.
type Server struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	session  *session.Session
	sender   Sender
	opts     RelayOptions
	hooks    Hooks
	hostBase string
	conn     *websocket.Conn
}

// NewServer creates a control websocket server.
func NewServer(sess *session.Session, sender Sender, hostBase string, opts RelayOptions, hooks Hooks) *Server {
	return &Server{
		session:  sess,
		sender:   sender,
		opts:     opts,
		hooks:    hooks,
		hostBase: hostBase,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and processes control messages.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.session.IsAuthenticated() {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.acceptConn(conn)
	defer s.cleanupConn(conn)

	id := uuid.NewString()
	log.Printf("control: client %s connected", id)
	out := &connWriter{conn: conn}

	relay := NewRelay(s.session, s.sender, s.opts)
	defer relay.Close()
	relay.OnCursor(func(p NormalizedPoint) {
		_ = out.write(CursorMessage{T: "cursor", X: p.X, Y: p.Y})
	})

	updates, cancel := s.session.Subscribe()
	defer cancel()
	done := make(chan struct{})
	defer close(done)

	if err := out.write(NewStatus(s.session.Snapshot(), s.hostBase)); err != nil {
		return
	}
	go s.pushStatus(out, updates, done)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("control: client %s disconnected", id)
			return
		}
		if err := Apply(relay, s.session, s.hooks, msg); err != nil {
			if errors.Is(err, ErrUnknownMessage) {
				continue
			}
			_ = out.write(ErrorMessage{T: "error", Error: err.Error()})
		}
	}
}

// pushStatus forwards session changes until done is closed or a write fails.
func (s *Server) pushStatus(out *connWriter, updates <-chan session.Snapshot, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case snap := <-updates:
			if err := out.write(NewStatus(snap, s.hostBase)); err != nil {
				return
			}
		}
	}
}

// acceptConn makes conn the active connection, closing the previous one.
func (s *Server) acceptConn(conn *websocket.Conn) {
	s.mu.Lock()
	prev := s.conn
	s.conn = conn
	s.mu.Unlock()
	if prev != nil {
		log.Printf("control: replacing previous client")
		_ = prev.Close()
	}
}

// cleanupConn clears the active connection when closed.
func (s *Server) cleanupConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// connWriter serializes writes on one websocket.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// write sends v as JSON.
func (w *connWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(v)
}

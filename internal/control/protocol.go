package control

import (
	"github.com/frudas24/livecontrol/internal/session"
	"github.com/frudas24/livecontrol/internal/stream"
)

// Message is a control payload sent by an input surface.
type Message struct {
	T       string         `json:"t"`
	Touches []ClientPoint  `json:"touches,omitempty"`
	ClientX *float64       `json:"clientX,omitempty"`
	ClientY *float64       `json:"clientY,omitempty"`
	Buttons int            `json:"buttons,omitempty"`
	Rect    *Rect          `json:"rect,omitempty"`
	Enabled *bool          `json:"enabled,omitempty"`
	Stream  *stream.Update `json:"stream,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Event extracts the pointer coordinates carried by the message.
func (m Message) Event() PointerEvent {
	ev := PointerEvent{Touches: m.Touches, Buttons: m.Buttons}
	if m.ClientX != nil && m.ClientY != nil {
		ev.Client = &ClientPoint{X: *m.ClientX, Y: *m.ClientY}
	}
	return ev
}

// StatusMessage is pushed to surfaces whenever the session changes.
type StatusMessage struct {
	T            string        `json:"t"`
	Online       bool          `json:"online"`
	HasInfo      bool          `json:"hasInfo"`
	ScreenWidth  int           `json:"screenWidth,omitempty"`
	ScreenHeight int           `json:"screenHeight,omitempty"`
	InputEnabled bool          `json:"inputEnabled"`
	Stream       stream.Config `json:"stream"`
	Feed         string        `json:"feed"`
	LastAction   string        `json:"lastAction,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// CursorMessage reports the mapped position of the latest pointer sample.
type CursorMessage struct {
	T string  `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ErrorMessage reports a rejected request.
type ErrorMessage struct {
	T     string `json:"t"`
	Error string `json:"error"`
}

// NewStatus builds a status message from a session snapshot. hostBase is used to derive the feed address.
func NewStatus(snap session.Snapshot, hostBase string) StatusMessage {
	msg := StatusMessage{
		T:            "status",
		Online:       snap.Conn.Online,
		HasInfo:      snap.Conn.HasInfo,
		InputEnabled: snap.InputEnabled,
		Stream:       snap.Stream,
		Feed:         stream.FeedURL(hostBase, snap.Stream),
		LastAction:   snap.LastAction,
	}
	if snap.Conn.HasInfo {
		msg.ScreenWidth = snap.Conn.Info.ScreenWidth
		msg.ScreenHeight = snap.Conn.Info.ScreenHeight
	}
	if !snap.Conn.Online {
		msg.Error = snap.Conn.LastError
	}
	return msg
}

// Package signaling negotiates the WebRTC input transport over a websocket.
package signaling

import "github.com/pion/webrtc/v3"

// Message types exchanged on the signaling socket.
const (
	TypeOffer       = "offer"
	TypeAnswer      = "answer"
	TypeICE         = "ice"
	TypeHostOnline  = "hostOnline"
	TypeHostOffline = "hostOffline"
)

// Message is a websocket signaling payload.
type Message struct {
	T         string                   `json:"t"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// AnswerMessage carries the local description after ICE gathering.
func AnswerMessage(sdp string) Message {
	return Message{T: TypeAnswer, SDP: sdp}
}

// ICEMessage carries one trickled local candidate.
func ICEMessage(c webrtc.ICECandidateInit) Message {
	return Message{T: TypeICE, Candidate: &c}
}

// HostMessage tells the input client whether commands can reach the host.
func HostMessage(online bool) Message {
	if online {
		return Message{T: TypeHostOnline}
	}
	return Message{T: TypeHostOffline}
}

// Package mjpeg relays the host's live feed to local viewers as an MJPEG stream.
package mjpeg

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Boundary is the multipart boundary used for served streams.
const Boundary = "frame"

// Stream broadcasts JPEG frames to connected HTTP viewers.
type Stream struct {
	mu          sync.RWMutex
	subs        map[chan []byte]struct{}
	last        []byte
	minInterval time.Duration
	lastPush    time.Time
	frames      uint64
}

// NewStream creates a new stream with a minimum publish interval.
func NewStream(minInterval time.Duration) *Stream {
	return &Stream{
		subs:        make(map[chan []byte]struct{}),
		minInterval: minInterval,
	}
}

// SetMinInterval sets the minimum interval between broadcast frames.
func (s *Stream) SetMinInterval(d time.Duration) {
	s.mu.Lock()
	s.minInterval = d
	s.mu.Unlock()
}

// SetFPS caps the broadcast rate for a feed running at fps.
// Viewers never see more than twice the configured frame rate.
func (s *Stream) SetFPS(fps int) {
	if fps <= 0 {
		s.SetMinInterval(0)
		return
	}
	s.SetMinInterval(time.Second / time.Duration(2*fps))
}

// Publish sends a JPEG frame to all subscribers with throttling.
// A throttled frame still replaces the last frame served to new viewers.
func (s *Stream) Publish(jpg []byte) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := append([]byte(nil), jpg...)
	s.last = frame
	s.frames++
	if s.minInterval > 0 && now.Sub(s.lastPush) < s.minInterval {
		return
	}
	s.lastPush = now
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// Last returns a copy of the most recent frame, or nil before the first one.
func (s *Stream) Last() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.last) == 0 {
		return nil
	}
	return append([]byte(nil), s.last...)
}

// Frames returns how many frames have been published.
func (s *Stream) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Viewers returns the number of connected viewers.
func (s *Stream) Viewers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Handler serves the MJPEG multipart stream to the HTTP client.
func (s *Stream) Handler(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	WriteStreamHeaders(w)

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	keep := time.NewTicker(1 * time.Second)
	defer keep.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case jpg := <-ch:
			if err := WritePart(w, jpg); err != nil {
				return
			}
			fl.Flush()
		case <-keep.C:
			if j := s.Last(); j != nil {
				if err := WritePart(w, j); err != nil {
					return
				}
				fl.Flush()
			}
		}
	}
}

// WriteStreamHeaders sets the response headers for a multipart MJPEG stream.
func WriteStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
}

// WritePart writes a single JPEG frame to the multipart response.
func WritePart(w http.ResponseWriter, jpg []byte) error {
	_, _ = w.Write([]byte("\r\n--" + Boundary + "\r\n"))
	_, _ = w.Write([]byte("Content-Type: image/jpeg\r\n"))
	_, _ = w.Write([]byte("Content-Length: " + strconv.Itoa(len(jpg)) + "\r\n\r\n"))
	_, err := w.Write(jpg)
	return err
}

// subscribe registers a new viewer for frames.
func (s *Stream) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if len(s.last) > 0 {
		ch <- append([]byte(nil), s.last...)
	}
	s.mu.Unlock()
	return ch
}

// unsubscribe removes a viewer subscription.
func (s *Stream) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subs, ch)
	close(ch)
	s.mu.Unlock()
}

// Package hoststub simulates the controlled host: status probe, input commands, and a live MJPEG feed.
package hoststub

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/frudas24/livecontrol/internal/mjpeg"
	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"
)

// Info is the capability metadata the host advertises.
type Info struct {
	ScreenWidth    int     `json:"screen_width"`
	ScreenHeight   int     `json:"screen_height"`
	DefaultFPS     int     `json:"default_fps"`
	DefaultQuality int     `json:"default_quality"`
	DefaultScale   float64 `json:"default_scale"`
}

// Command is one accepted input command.
type Command struct {
	Action    string
	DX        float64
	DY        float64
	RequestID string
}

// FeedRequest records the parameters of one feed request.
type FeedRequest struct {
	FPS     int
	Quality int
	Scale   float64
	Cursor  string
}

// Host is an in-memory stand-in for the controlled machine.
type Host struct {
	mu       sync.Mutex
	token    string
	info     Info
	offline  bool
	commands []Command
	feeds    []FeedRequest
	cursorX  float64
	cursorY  float64
}

// New creates a host with the given bearer token and screen size.
func New(token string, width, height int) *Host {
	return &Host{
		token: token,
		info: Info{
			ScreenWidth:    width,
			ScreenHeight:   height,
			DefaultFPS:     15,
			DefaultQuality: 30,
			DefaultScale:   0.4,
		},
		cursorX: 0.5,
		cursorY: 0.5,
	}
}

// Router returns the host routes mounted under prefix, e.g. "/desktop".
func (h *Host) Router(prefix string) *mux.Router {
	r := mux.NewRouter()
	sub := r
	if prefix = strings.TrimRight(prefix, "/"); prefix != "" {
		sub = r.PathPrefix(prefix).Subrouter()
	}
	sub.HandleFunc("/livestream/info", h.handleInfo).Methods("GET")
	sub.HandleFunc("/livestream", h.handleStream).Methods("GET")
	sub.HandleFunc("/mapping", h.handleMapping).Methods("POST")
	return r
}

// SetOffline makes every endpoint answer 503 while true.
func (h *Host) SetOffline(offline bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offline = offline
}

// SetDefaults changes the suggested stream parameters.
func (h *Host) SetDefaults(fps, quality int, scale float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.info.DefaultFPS = fps
	h.info.DefaultQuality = quality
	h.info.DefaultScale = scale
}

// Commands returns every accepted command in arrival order.
func (h *Host) Commands() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Command, len(h.commands))
	copy(out, h.commands)
	return out
}

// Feeds returns the parameters of every feed request.
func (h *Host) Feeds() []FeedRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]FeedRequest, len(h.feeds))
	copy(out, h.feeds)
	return out
}

// Cursor returns the normalized remote cursor position.
func (h *Host) Cursor() (float64, float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursorX, h.cursorY
}

// isOffline reports the simulated outage flag.
func (h *Host) isOffline() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offline
}

// handleInfo serves the capability metadata.
func (h *Host) handleInfo(w http.ResponseWriter, _ *http.Request) {
	if h.isOffline() {
		http.Error(w, "capture unavailable", http.StatusServiceUnavailable)
		return
	}
	h.mu.Lock()
	info := h.info
	h.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

// handleMapping accepts one input command.
func (h *Host) handleMapping(w http.ResponseWriter, r *http.Request) {
	if h.isOffline() {
		http.Error(w, "capture unavailable", http.StatusServiceUnavailable)
		return
	}
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil || !gjson.ValidBytes(body) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	cmd, ok := parseCommand(body)
	if !ok {
		http.Error(w, "bad command", http.StatusBadRequest)
		return
	}
	cmd.RequestID = r.Header.Get("X-Request-ID")

	h.mu.Lock()
	h.commands = append(h.commands, cmd)
	if cmd.Action == "move" {
		h.cursorX = clamp01(h.cursorX + cmd.DX)
		h.cursorY = clamp01(h.cursorY + cmd.DY)
	}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// parseCommand validates a mapping body.
func parseCommand(body []byte) (Command, bool) {
	res := gjson.ParseBytes(body)
	action := res.Get("action").String()
	if !res.Get("normalized").Bool() {
		return Command{}, false
	}
	switch action {
	case "move":
		dx, dy := res.Get("dx"), res.Get("dy")
		if dx.Type != gjson.Number || dy.Type != gjson.Number {
			return Command{}, false
		}
		return Command{Action: action, DX: dx.Float(), DY: dy.Float()}, true
	case "tap", "doubletap", "rightclick":
		return Command{Action: action}, true
	default:
		return Command{}, false
	}
}

// handleStream serves an MJPEG feed rendered at the requested parameters until the client leaves.
func (h *Host) handleStream(w http.ResponseWriter, r *http.Request) {
	if h.isOffline() {
		http.Error(w, "capture unavailable", http.StatusServiceUnavailable)
		return
	}
	req, ok := parseFeedRequest(r)
	if !ok {
		http.Error(w, "bad stream parameters", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	h.mu.Lock()
	h.feeds = append(h.feeds, req)
	width := max(1, int(float64(h.info.ScreenWidth)*req.Scale))
	height := max(1, int(float64(h.info.ScreenHeight)*req.Scale))
	h.mu.Unlock()

	mjpeg.WriteStreamHeaders(w)
	ticker := time.NewTicker(time.Second / time.Duration(req.FPS))
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		if h.isOffline() {
			log.Printf("hoststub: feed cut (offline)")
			return
		}
		x, y := h.Cursor()
		jpg, err := renderFrame(width, height, frame, x, y, req)
		if err != nil {
			log.Printf("hoststub: render: %v", err)
			return
		}
		if err := mjpeg.WritePart(w, jpg); err != nil {
			return
		}
		flusher.Flush()
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// parseFeedRequest reads and validates the feed query.
func parseFeedRequest(r *http.Request) (FeedRequest, bool) {
	q := r.URL.Query()
	fps, err := strconv.Atoi(q.Get("fps"))
	if err != nil || fps <= 0 || fps > 60 {
		return FeedRequest{}, false
	}
	quality, err := strconv.Atoi(q.Get("quality"))
	if err != nil || quality <= 0 || quality > 100 {
		return FeedRequest{}, false
	}
	scale, err := strconv.ParseFloat(q.Get("scale"), 64)
	if err != nil || scale <= 0 || scale > 1 {
		return FeedRequest{}, false
	}
	cursor := q.Get("cursor")
	switch cursor {
	case "crosshair", "simple", "none":
	default:
		return FeedRequest{}, false
	}
	return FeedRequest{FPS: fps, Quality: quality, Scale: scale, Cursor: cursor}, true
}

// renderFrame draws a shaded background with the cursor overlay and encodes it.
func renderFrame(width, height, frame int, cx, cy float64, req FeedRequest) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	shade := uint8(frame * 8)
	bg := color.RGBA{R: 20, G: 40 + shade/4, B: 90, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, bg)
		}
	}
	px, py := int(cx*float64(width-1)), int(cy*float64(height-1))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	switch req.Cursor {
	case "simple":
		fillDot(img, px, py, 2, white)
	case "crosshair":
		fillDot(img, px, py, 1, white)
		drawRing(img, px, py, 6, white)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: req.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fillDot paints a filled square of radius r around (x, y).
func fillDot(img *image.RGBA, x, y, r int, c color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			img.Set(x+dx, y+dy, c)
		}
	}
}

// drawRing paints the outline of a circle of radius r around (x, y).
func drawRing(img *image.RGBA, x, y, r int, c color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d := dx*dx + dy*dy
			if d <= r*r && d >= (r-1)*(r-1) {
				img.Set(x+dx, y+dy, c)
			}
		}
	}
}

// clamp01 bounds a float to the [0..1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

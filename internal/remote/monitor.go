package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultProbeInterval is the reachability check period.
const DefaultProbeInterval = 10 * time.Second

const maxInfoBody = 64 << 10

// HostInfo is the capability metadata reported by the host.
type HostInfo struct {
	ScreenWidth    int     `json:"screenWidth"`
	ScreenHeight   int     `json:"screenHeight"`
	DefaultFPS     int     `json:"defaultFps"`
	DefaultQuality int     `json:"defaultQuality"`
	DefaultScale   float64 `json:"defaultScale"`
}

// ConnState is the last known reachability of the host.
// Info is retained across failures; HasInfo reports whether any probe ever succeeded.
type ConnState struct {
	Online    bool
	HasInfo   bool
	Info      HostInfo
	CheckedAt time.Time
	LastError string
}

// Monitor periodically probes the host status endpoint.
type Monitor struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	client   *http.Client
	base     string
	interval time.Duration
	state    ConnState
	onChange func(ConnState)
	now      func() time.Time
}

// NewMonitor creates a monitor probing {base}/livestream/info every interval.
func NewMonitor(base string, interval time.Duration, client *http.Client) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Monitor{
		client:   client,
		base:     strings.TrimRight(base, "/"),
		interval: interval,
		now:      time.Now,
	}
}

// OnChange registers a callback invoked after every online flip or metadata change.
func (m *Monitor) OnChange(fn func(ConnState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// SetNowFunc overrides the clock used for CheckedAt.
func (m *Monitor) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = fn
}

// State returns the current connection state.
func (m *Monitor) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run probes once immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check performs one probe and applies its outcome.
func (m *Monitor) Check(ctx context.Context) ConnState {
	info, err := m.Probe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return m.State()
		}
		if debugEnabled() {
			log.Printf("probe: %v", err)
		}
		return m.apply(false, HostInfo{}, err)
	}
	return m.apply(true, info, nil)
}

// MarkOffline records an external failure signal, such as a broken feed.
func (m *Monitor) MarkOffline(err error) {
	if err == nil {
		err = errors.New("marked offline")
	}
	m.apply(false, HostInfo{}, err)
}

// Probe fetches host capability metadata. Any transport error, non-2xx status, or unusable body is an error.
func (m *Monitor) Probe(ctx context.Context) (HostInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.base+"/livestream/info", nil)
	if err != nil {
		return HostInfo{}, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return HostInfo{}, fmt.Errorf("get info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return HostInfo{}, &StatusError{Op: "get info", Code: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInfoBody))
	if err != nil {
		return HostInfo{}, fmt.Errorf("read info: %w", err)
	}
	return ParseHostInfo(data)
}

// ParseHostInfo decodes the status payload. Numeric fields may be sent as numbers or numeric strings.
func ParseHostInfo(data []byte) (HostInfo, error) {
	if !gjson.ValidBytes(data) {
		return HostInfo{}, errors.New("info: invalid json")
	}
	res := gjson.ParseBytes(data)
	width := res.Get("screen_width")
	height := res.Get("screen_height")
	if !width.Exists() || !height.Exists() {
		return HostInfo{}, errors.New("info: missing screen dimensions")
	}
	return HostInfo{
		ScreenWidth:    int(width.Int()),
		ScreenHeight:   int(height.Int()),
		DefaultFPS:     int(res.Get("default_fps").Int()),
		DefaultQuality: int(res.Get("default_quality").Int()),
		DefaultScale:   res.Get("default_scale").Float(),
	}, nil
}

// apply updates state and notifies the observer on transitions.
// notifyMu spans the update and the callback so observers see transitions in the order they were applied.
// The observer must not call back into the monitor.
func (m *Monitor) apply(online bool, info HostInfo, err error) ConnState {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.mu.Lock()
	prev := m.state
	next := prev
	next.Online = online
	next.CheckedAt = m.now()
	if online {
		next.Info = info
		next.HasInfo = true
		next.LastError = ""
	} else if err != nil {
		next.LastError = err.Error()
	}
	m.state = next
	fn := m.onChange
	m.mu.Unlock()

	changed := prev.Online != next.Online || prev.HasInfo != next.HasInfo || prev.Info != next.Info
	if changed {
		if online {
			log.Printf("monitor: host online (%dx%d)", info.ScreenWidth, info.ScreenHeight)
		} else {
			log.Printf("monitor: host offline: %s", next.LastError)
		}
		if fn != nil {
			fn(next)
		}
	}
	return next
}

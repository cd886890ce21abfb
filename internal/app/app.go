// Package app wires the host client, input surfaces, and feed relay together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/frudas24/livecontrol/internal/config"
	"github.com/frudas24/livecontrol/internal/control"
	"github.com/frudas24/livecontrol/internal/mjpeg"
	"github.com/frudas24/livecontrol/internal/remote"
	"github.com/frudas24/livecontrol/internal/session"
	"github.com/frudas24/livecontrol/internal/signaling"
	"github.com/frudas24/livecontrol/internal/stream"
	"github.com/frudas24/livecontrol/internal/webrtc"
)

// App coordinates the HTTP API, websocket servers, host client, and feed relay.
type App struct {
	mu         sync.Mutex
	cfg        config.Config
	session    *session.Session
	dispatcher *remote.Dispatcher
	monitor    *remote.Monitor
	feed       *mjpeg.Stream
	relay      *mjpeg.Relay
	gateway    *webrtc.Gateway
	signaling  *signaling.Server
	control    *control.Server
	failures   atomic.Uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a new application with its dependencies wired.
func New(cfg config.Config, sess *session.Session, policy signaling.ClientPolicy) (*App, error) {
	if sess == nil {
		return nil, errors.New("session is required")
	}
	if cfg.HostBaseURL == "" {
		return nil, errors.New("host base url is required")
	}

	app := &App{
		cfg:     cfg,
		session: sess,
		feed:    mjpeg.NewStream(0),
	}
	app.dispatcher = remote.NewDispatcher(cfg.HostBaseURL, remote.StaticToken(cfg.ControlToken), remote.DispatcherOptions{
		Timeout:     cfg.RequestTimeout(),
		MaxInFlight: cfg.MaxInFlight,
		Observer:    app.observeDispatch,
	})
	app.monitor = remote.NewMonitor(cfg.HostBaseURL, cfg.ProbeInterval(), nil)
	app.monitor.OnChange(app.onHostChange)
	app.relay = mjpeg.NewRelay(app.feed, nil)
	app.relay.OnFailure(func(addr string, err error) {
		app.monitor.MarkOffline(fmt.Errorf("feed %s: %w", addr, err))
	})

	opts := control.RelayOptions{Interval: cfg.MoveThrottle()}
	hooks := control.Hooks{
		SetStream: app.UpdateStream,
		FeedError: app.feedError,
	}
	app.control = control.NewServer(sess, app.dispatcher, cfg.HostBaseURL, opts, hooks)

	gateway, err := webrtc.NewGateway(sess, app.dispatcher, cfg.HostBaseURL, opts, hooks)
	if err != nil {
		return nil, err
	}
	app.gateway = gateway
	app.signaling = signaling.NewServer(gateway, policy, sess.IsAuthenticated)

	return app, nil
}

// Start restores saved stream preferences and launches the host monitor.
func (a *App) Start(ctx context.Context) error {
	c, ok, err := stream.Load(a.cfg.PrefsPath)
	if err != nil {
		return fmt.Errorf("load stream prefs: %w", err)
	}
	if ok {
		log.Printf("stream: restored %dfps q%d %d%% %s", c.FPS, c.Quality, c.ScalePct, c.Cursor)
		a.session.SetStream(c, true)
	}
	a.feed.SetFPS(a.session.Stream().FPS)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return errors.New("app already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		a.monitor.Run(runCtx)
	}(a.done)
	return nil
}

// Stop cancels the monitor and releases the feed, pending commands, and peer connection.
func (a *App) Stop() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	a.relay.Stop()
	a.dispatcher.Close()
	a.gateway.ClosePeer()
	return nil
}

// UpdateStream applies a stream change requested by a surface.
// Reset drops the user choice and falls back to the host suggestion.
func (a *App) UpdateStream(u stream.Update) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if u.Reset {
		c := a.hostDefaults(a.session.Conn())
		a.session.ResetStream(c)
		if err := stream.Clear(a.cfg.PrefsPath); err != nil {
			log.Printf("stream: clear prefs: %v", err)
		}
		a.applyFeedLocked(c)
		return nil
	}
	if u.Empty() {
		return nil
	}
	next, err := u.Apply(a.session.Stream())
	if err != nil {
		return err
	}
	a.session.SetStream(next, true)
	if err := stream.Save(a.cfg.PrefsPath, next); err != nil {
		log.Printf("stream: save prefs: %v", err)
	}
	a.applyFeedLocked(next)
	return nil
}

// onHostChange mirrors monitor transitions into the session and the feed relay.
func (a *App) onHostChange(st remote.ConnState) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.session.SetConn(st)
	if st.Online {
		if !a.session.StreamChosen() {
			a.session.ResetStream(a.hostDefaults(st))
		}
		a.applyFeedLocked(a.session.Stream())
	} else {
		a.relay.Switch("")
	}
	a.signaling.NotifyHost(st.Online)
}

// applyFeedLocked points the relay at the feed for c while the host is online.
func (a *App) applyFeedLocked(c stream.Config) {
	a.feed.SetFPS(c.FPS)
	if !a.session.Conn().Online {
		return
	}
	a.relay.Switch(stream.FeedURL(a.cfg.HostBaseURL, c))
}

// hostDefaults returns the host's suggested config, or the built-in one before any successful probe.
func (a *App) hostDefaults(st remote.ConnState) stream.Config {
	if !st.HasInfo {
		return stream.Default()
	}
	return stream.FromHost(stream.HostDefaults{
		FPS:     st.Info.DefaultFPS,
		Quality: st.Info.DefaultQuality,
		Scale:   st.Info.DefaultScale,
	})
}

// feedError handles a render failure reported by a surface.
func (a *App) feedError(reason string) {
	if reason == "" {
		reason = "render failed"
	}
	a.monitor.MarkOffline(fmt.Errorf("feed error: %s", reason))
}

// observeDispatch counts failed commands for the state API.
func (a *App) observeDispatch(_ remote.Action, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		a.failures.Add(1)
	}
}

// Session returns the live session.
func (a *App) Session() *session.Session {
	return a.session
}

// Dispatcher returns the host command sender.
func (a *App) Dispatcher() *remote.Dispatcher {
	return a.dispatcher
}

// Monitor returns the host reachability monitor.
func (a *App) Monitor() *remote.Monitor {
	return a.monitor
}

// Signaling returns the signaling websocket handler.
func (a *App) Signaling() *signaling.Server {
	return a.signaling
}

// Control returns the control websocket handler.
func (a *App) Control() *control.Server {
	return a.control
}

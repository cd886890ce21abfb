package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/frudas24/livecontrol/internal/app"
	"github.com/frudas24/livecontrol/internal/config"
	"github.com/frudas24/livecontrol/internal/control"
	"github.com/frudas24/livecontrol/internal/remote"
	"github.com/frudas24/livecontrol/internal/session"
	"github.com/frudas24/livecontrol/internal/signaling"
	"github.com/frudas24/livecontrol/internal/tui"
	"github.com/frudas24/livecontrol/internal/webrtc"
	"github.com/gdamore/tcell/v2"
)

// run wires the application and blocks until shutdown.
func run(debug, useTUI bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	debug = debug || cfg.Debug
	remote.SetDebugLogging(debug)
	control.SetDebugLogging(debug)
	webrtc.SetDebugLogging(debug)

	if useTUI {
		closeLog, err := logToFile(filepath.Join(cfg.DataDir, "livecontrol.log"))
		if err != nil {
			return err
		}
		defer closeLog()
	}
	if debug {
		log.Printf("debug: enabled")
	}
	logStartup(cfg)

	hash, err := cfg.PasswordHash()
	if err != nil {
		return err
	}
	sess := session.New(hash)

	appInstance, err := app.New(cfg, sess, signaling.ClientReplace)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := appInstance.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := appInstance.Stop(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	mux := http.NewServeMux()
	appInstance.RegisterRoutes(mux, "")
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()
	if useTUI {
		go func() {
			errCh <- runTouchpad(ctx, cfg, appInstance)
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runTouchpad drives the app from this terminal until the user quits.
func runTouchpad(ctx context.Context, cfg config.Config, a *app.App) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	pad := tui.New(screen, a.Session(), a.Dispatcher(), control.RelayOptions{Interval: cfg.MoveThrottle()}, a.UpdateStream)
	return pad.Run(ctx)
}

// logToFile redirects the standard logger so it does not draw over the touchpad.
func logToFile(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

// logFatal prints and exits for startup failures.
func logFatal(err error) {
	log.Printf("fatal: %v", err)
	os.Exit(1)
}

// logStartup prints startup checks and connection info.
func logStartup(cfg config.Config) {
	log.Printf("livecontrol starting")
	logEnvStatus(cfg)
	log.Printf("host: %s (probe every %s, move throttle %s)", cfg.HostBaseURL, cfg.ProbeInterval(), cfg.MoveThrottle())
	if cfg.ControlToken == "" {
		log.Printf("env CONTROL_TOKEN: missing (commands are sent without a token)")
	}
	logListenStatus(cfg.ListenAddr)
}

// logEnvStatus reports which config sources were found.
func logEnvStatus(cfg config.Config) {
	for _, name := range []string{"livecontrol.yaml", ".env"} {
		path := filepath.Join(cfg.DataDir, name)
		if fileExists(path) {
			log.Printf("config check: ok (%s)", path)
		} else {
			log.Printf("config check: missing (%s)", path)
		}
	}
	log.Printf("password mode: %s", cfg.PasswordMode)
	log.Printf("stream prefs: %s", cfg.PrefsPath)
}

// logListenStatus reports the listen address and a local URL helper.
func logListenStatus(addr string) {
	log.Printf("listen addr: %s", addr)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	log.Printf("local url: http://%s", net.JoinHostPort(host, port))
}

// fileExists reports whether a path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

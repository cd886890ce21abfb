package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

const defaultRequestTimeout = 5 * time.Second

// ErrBusy reports an action dropped because the in-flight cap was reached.
var ErrBusy = errors.New("too many commands in flight")

// ErrClosed reports an action dropped because the dispatcher was closed.
var ErrClosed = errors.New("dispatcher closed")

// StatusError reports a non-success HTTP status from the host.
type StatusError struct {
	Op   string
	Code int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
}

// Credentials supplies the bearer token attached to every command.
type Credentials interface {
	Token() string
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token returns the token value.
func (t StaticToken) Token() string {
	return string(t)
}

// Observer receives the outcome of every dispatched action. err is nil on success.
type Observer func(a Action, err error)

// DispatcherOptions tunes a Dispatcher. Zero values select defaults.
type DispatcherOptions struct {
	Client      *http.Client
	Timeout     time.Duration
	MaxInFlight int
	Observer    Observer
}

// Dispatcher sends input commands to the host without blocking the caller.
type Dispatcher struct {
	mu      sync.Mutex
	client  *http.Client
	base    string
	creds   Credentials
	observe Observer
	slots   chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewDispatcher creates a dispatcher posting to {base}/mapping.
func NewDispatcher(base string, creds Credentials, opts DispatcherOptions) *Dispatcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if creds == nil {
		creds = StaticToken("")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		client:  client,
		base:    strings.TrimRight(base, "/"),
		creds:   creds,
		observe: opts.Observer,
		ctx:     ctx,
		cancel:  cancel,
	}
	if opts.MaxInFlight > 0 {
		d.slots = make(chan struct{}, opts.MaxInFlight)
	}
	return d
}

// Dispatch transmits a in the background and returns immediately.
// Failures are logged and reported to the observer; nothing is retried.
func (d *Dispatcher) Dispatch(a Action) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.report(a, ErrClosed)
		return
	}
	if d.slots != nil {
		select {
		case d.slots <- struct{}{}:
		default:
			d.mu.Unlock()
			log.Printf("dispatch: %s dropped: %v", a.Kind, ErrBusy)
			d.report(a, ErrBusy)
			return
		}
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		if d.slots != nil {
			defer func() { <-d.slots }()
		}
		err := d.Send(d.ctx, a)
		if err != nil && d.ctx.Err() == nil {
			log.Printf("dispatch: %s failed: %v", a.Kind, err)
		}
		d.report(a, err)
	}()
}

// Send posts a single command and waits for the response status.
func (d *Dispatcher) Send(ctx context.Context, a Action) error {
	body, err := EncodeAction(a)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+"/mapping", bytes.NewReader(body))
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.creds.Token())
	req.Header.Set("X-Request-ID", reqID)

	if debugEnabled() {
		log.Printf("dispatch: %s %s", reqID, body)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post mapping: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: "post mapping", Code: resp.StatusCode}
	}
	return nil
}

// Close cancels in-flight commands and waits for their goroutines to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

// Wait blocks until every dispatched command has completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// report forwards an outcome to the observer when one is set.
func (d *Dispatcher) report(a Action, err error) {
	if d.observe != nil {
		d.observe(a, err)
	}
}

// EncodeAction builds the JSON command body. Moves always carry both axes, zero included.
func EncodeAction(a Action) ([]byte, error) {
	body := []byte(`{}`)
	body, err := sjson.SetBytes(body, "action", string(a.Kind))
	if err != nil {
		return nil, err
	}
	if a.Kind == ActMove {
		if body, err = sjson.SetBytes(body, "dx", a.DX); err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, "dy", a.DY); err != nil {
			return nil, err
		}
	}
	return sjson.SetBytes(body, "normalized", true)
}

package mjpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

const maxFrameBytes = 8 << 20

// ErrFeedEnded reports an upstream feed that closed on its own.
var ErrFeedEnded = errors.New("feed ended")

// Relay pulls the host feed and republishes its frames into a Stream.
// Switching the address replaces the upstream pull while viewers stay connected.
type Relay struct {
	mu     sync.Mutex
	client *http.Client
	stream *Stream
	onFail func(addr string, err error)
	addr   string
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup
}

// NewRelay creates a relay publishing into stream.
func NewRelay(stream *Stream, client *http.Client) *Relay {
	if client == nil {
		client = &http.Client{}
	}
	return &Relay{client: client, stream: stream}
}

// OnFailure registers a callback for upstream failures. It is not called for pulls that were switched away or stopped.
func (r *Relay) OnFailure(fn func(addr string, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFail = fn
}

// Switch starts pulling addr, replacing any current pull. It reports whether a new pull was started;
// switching to the address already being pulled is a no-op.
func (r *Relay) Switch(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if addr == "" {
		r.stopLocked()
		return false
	}
	if r.addr == addr && r.cancel != nil {
		return false
	}
	r.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	r.gen++
	r.addr = addr
	r.cancel = cancel
	gen := r.gen
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pull(ctx, gen, addr)
	}()
	log.Printf("feed: switched to %s", addr)
	return true
}

// Addr returns the address being pulled, or "" when idle.
func (r *Relay) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

// Stop cancels the current pull and waits for it to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	r.stopLocked()
	r.mu.Unlock()
	r.wg.Wait()
}

// stopLocked cancels the current pull while holding the relay lock.
func (r *Relay) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.addr = ""
	r.gen++
}

// pull reads one upstream feed until it fails or ctx is cancelled.
func (r *Relay) pull(ctx context.Context, gen uint64, addr string) {
	err := r.readFeed(ctx, addr)
	if ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.addr = ""
	fn := r.onFail
	r.mu.Unlock()

	if err == nil {
		err = ErrFeedEnded
	}
	log.Printf("feed: %v", err)
	if fn != nil {
		fn(addr, err)
	}
}

// readFeed fetches addr and publishes every JPEG it carries.
// A single image/jpeg response publishes one frame and returns nil; the caller treats that as an ended feed.
func (r *Relay) readFeed(ctx context.Context, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("get feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("get feed: unexpected status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("feed content type: %w", err)
	}
	switch {
	case mediaType == "image/jpeg":
		jpg, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		r.stream.Publish(jpg)
		return nil
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return errors.New("feed content type: missing boundary")
		}
		return r.readParts(multipart.NewReader(resp.Body, boundary))
	default:
		return fmt.Errorf("feed content type: unsupported %q", mediaType)
	}
}

// readParts publishes each multipart body until the reader fails.
// Parts with a Content-Length are published as soon as their bytes arrive, before the next boundary.
func (r *Relay) readParts(mr *multipart.Reader) error {
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrFeedEnded
			}
			return fmt.Errorf("read part: %w", err)
		}
		jpg, err := readPart(part)
		if err != nil {
			_ = part.Close()
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrFeedEnded
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if len(jpg) > 0 {
			r.stream.Publish(jpg)
		}
		_ = part.Close()
	}
}

// readPart reads one frame, honoring the part's Content-Length when present.
func readPart(part *multipart.Part) ([]byte, error) {
	n, err := strconv.Atoi(strings.TrimSpace(part.Header.Get("Content-Length")))
	if err != nil || n <= 0 || n > maxFrameBytes {
		return io.ReadAll(io.LimitReader(part, maxFrameBytes))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(part, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/frudas24/livecontrol/internal/stream"
	"github.com/gorilla/websocket"
)

// newTestServer serves env's app routes from the embedded assets.
func newTestServer(t *testing.T, env *testEnv) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	env.app.RegisterRoutes(mux, filepath.Join(t.TempDir(), "missing"))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// post sends a JSON body and returns the response.
func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// TestHandleState_RequiresLogin verifies /api/state is gated by login and reports host state.
func TestHandleState_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.app.handleState(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	srv := newTestServer(t, env)
	if resp := post(t, srv.URL+"/login", `{"password":"nope"}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	if resp := post(t, srv.URL+"/login", `{"password":"pw"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for login, got %d", resp.StatusCode)
	}
	env.app.Monitor().Check(context.Background())

	rec = httptest.NewRecorder()
	env.app.handleState(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	var resp stateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Online || !resp.Authenticated || resp.ScreenWidth != 1000 || !resp.FeedActive {
		t.Fatalf("unexpected state: %+v", resp)
	}
	if !strings.HasPrefix(resp.Feed, env.base+"/livestream?fps=20&") {
		t.Fatalf("unexpected feed %q", resp.Feed)
	}

	if resp := post(t, srv.URL+"/logout", `{}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for logout, got %d", resp.StatusCode)
	}
	if env.app.Session().IsAuthenticated() {
		t.Fatalf("expected logged out")
	}
}

// TestHandleStream_UpdateAndValidate verifies the stream endpoint applies valid changes and rejects invalid ones.
func TestHandleStream_UpdateAndValidate(t *testing.T) {
	env := newTestEnv(t)
	env.app.Session().Authenticate("pw")

	rec := httptest.NewRecorder()
	env.app.handleStream(rec, httptest.NewRequest(http.MethodPost, "/api/stream", bytes.NewBufferString(`{"scale":0.7,"cursor":"crosshair"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp streamResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stream.ScalePct != 70 || resp.Stream.Cursor != stream.CursorCrosshair || !resp.Chosen {
		t.Fatalf("unexpected stream: %+v", resp)
	}
	if resp.Feed != stream.FeedURL(env.base, resp.Stream) {
		t.Fatalf("unexpected feed %q", resp.Feed)
	}

	for _, body := range []string{`{"quality":35}`, `{"cursor":"arrow"}`, `{"scale":0.5,"scalePct":50}`, `{`} {
		rec = httptest.NewRecorder()
		env.app.handleStream(rec, httptest.NewRequest(http.MethodPost, "/api/stream", bytes.NewBufferString(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
	}

	rec = httptest.NewRecorder()
	env.app.handleStream(rec, httptest.NewRequest(http.MethodDelete, "/api/stream", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

// TestHandleFeed_RequiresLogin verifies the relayed feed is not served anonymously.
func TestHandleFeed_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.app.handleFeed(rec, httptest.NewRequest(http.MethodGet, "/mjpeg/live", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// TestStaticIndex_Served verifies the embedded control page is served.
func TestStaticIndex_Served(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// TestControlSocket_GestureReachesHost verifies a drag and a tap over the control socket arrive at the host.
func TestControlSocket_GestureReachesHost(t *testing.T) {
	env := newTestEnv(t)
	env.app.Session().Authenticate("pw")
	env.app.Monitor().Check(context.Background())
	srv := newTestServer(t, env)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/control", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	msgs := []string{
		`{"t":"surface","rect":{"left":0,"top":0,"width":100,"height":100}}`,
		`{"t":"down","clientX":50,"clientY":50,"buttons":1}`,
		`{"t":"move","clientX":55,"clientY":50,"buttons":1}`,
		`{"t":"move","clientX":60,"clientY":45,"buttons":1}`,
		`{"t":"up"}`,
		`{"t":"tap"}`,
	}
	for _, m := range msgs {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		var dx, dy float64
		taps := 0
		for _, c := range env.host.Commands() {
			switch c.Action {
			case "move":
				dx += c.DX
				dy += c.DY
			case "tap":
				taps++
			}
		}
		if taps == 1 && math.Abs(dx-0.1) < 1e-9 && math.Abs(dy+0.05) < 1e-9 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected dx=0.1 dy=-0.05 and one tap, got dx=%v dy=%v taps=%d", dx, dy, taps)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if env.app.Session().LastAction() != "tap" {
		t.Fatalf("expected last action tap, got %q", env.app.Session().LastAction())
	}
}

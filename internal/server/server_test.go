package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/shared"
	"github.com/gorilla/websocket"
)

// fakeController records calls and serves a fixed state.
type fakeController struct {
	mu      sync.Mutex
	state   control.State
	calls   []string
	err     error
	motions []models.MotionSample
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) Snapshot() control.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Login(ctx context.Context) error          { return f.record("login") }
func (f *fakeController) Logout(ctx context.Context) error         { return f.record("logout") }
func (f *fakeController) TogglePlayback(ctx context.Context) error { return f.record("toggle") }
func (f *fakeController) SkipToNext(ctx context.Context) error     { return f.record("next") }
func (f *fakeController) SkipToPrevious(ctx context.Context) error { return f.record("previous") }

func (f *fakeController) SelectMood(m models.Mood) error {
	if err := f.record("mood:" + m.String()); err != nil {
		return err
	}
	f.mu.Lock()
	f.state.CurrentMood = m
	f.mu.Unlock()
	return nil
}

func (f *fakeController) SetMode(m control.Mode) { f.record("mode:" + m.String()) }
func (f *fakeController) ToggleMode()            { f.record("mode:toggle") }
func (f *fakeController) EnableGestures()        { f.record("gestures:on") }
func (f *fakeController) DisableGestures()       { f.record("gestures:off") }

func (f *fakeController) Motion(s models.MotionSample) {
	f.record("motion")
	f.mu.Lock()
	f.motions = append(f.motions, s)
	f.mu.Unlock()
}

func newTestServer(t *testing.T, ctl Controller) (*Server, *httptest.Server) {
	t.Helper()
	srv := New("127.0.0.1:0", ctl, shared.NewLogger(nil))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI(t *testing.T) {
	t.Run("state", func(t *testing.T) {
		ctl := &fakeController{state: control.State{Authenticated: true, CurrentMood: models.Chill, Mode: control.Auto}}
		_, ts := newTestServer(t, ctl)

		resp, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var got map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got["currentMood"] != "chill" || got["mode"] != "auto" || got["authenticated"] != true {
			t.Errorf("unexpected state: %v", got)
		}
		if resp.Header.Get(requestIDHeader) == "" {
			t.Error("expected request id header")
		}
	})

	t.Run("actions", func(t *testing.T) {
		ctl := &fakeController{}
		_, ts := newTestServer(t, ctl)

		for _, tc := range []struct {
			path, body, call string
		}{
			{"/api/login", "", "login"},
			{"/api/logout", "", "logout"},
			{"/api/playback/toggle", "", "toggle"},
			{"/api/playback/next", "", "next"},
			{"/api/playback/previous", "", "previous"},
			{"/api/mood", `{"mood":"energy"}`, "mood:energy"},
			{"/api/mode", `{"mode":"auto"}`, "mode:auto"},
			{"/api/mode/toggle", "", "mode:toggle"},
			{"/api/gestures/enable", "", "gestures:on"},
			{"/api/gestures/disable", "", "gestures:off"},
		} {
			t.Run(tc.path, func(t *testing.T) {
				resp := post(t, ts.URL+tc.path, tc.body)
				if resp.StatusCode != http.StatusOK {
					t.Fatalf("expected 200, got %d", resp.StatusCode)
				}
				calls := ctl.Calls()
				if len(calls) == 0 || calls[len(calls)-1] != tc.call {
					t.Errorf("expected %q, got %v", tc.call, calls)
				}
			})
		}
	})

	t.Run("motion", func(t *testing.T) {
		ctl := &fakeController{}
		_, ts := newTestServer(t, ctl)

		resp := post(t, ts.URL+"/api/motion", `{"x":0.9,"y":0.1,"z":-1}`)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", resp.StatusCode)
		}
		ctl.mu.Lock()
		defer ctl.mu.Unlock()
		if len(ctl.motions) != 1 || ctl.motions[0].X != 0.9 {
			t.Errorf("unexpected motion: %+v", ctl.motions)
		}
	})

	t.Run("bad input", func(t *testing.T) {
		ctl := &fakeController{}
		_, ts := newTestServer(t, ctl)

		for _, tc := range []struct{ path, body string }{
			{"/api/mood", `{"mood":"sleepy"}`},
			{"/api/mood", `not json`},
			{"/api/mode", `{"mode":"eeg"}`},
			{"/api/motion", `{"x":"left"}`},
		} {
			resp := post(t, ts.URL+tc.path, tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s %s: expected 400, got %d", tc.path, tc.body, resp.StatusCode)
			}
		}
		if len(ctl.Calls()) != 0 {
			t.Errorf("invalid requests reached the controller: %v", ctl.Calls())
		}
	})

	t.Run("auth failure maps to 401 with kind", func(t *testing.T) {
		ctl := &fakeController{err: shared.NewError(shared.KindSessionExpired, "next", nil)}
		_, ts := newTestServer(t, ctl)

		resp := post(t, ts.URL+"/api/playback/next", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		var body errorBody
		json.NewDecoder(resp.Body).Decode(&body)
		if body.Kind == "" || body.Error == "" {
			t.Errorf("unexpected body: %+v", body)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		_, ts := newTestServer(t, &fakeController{})
		resp, err := http.Get(ts.URL + "/api/logout")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed || resp.Header.Get("Allow") != "POST" {
			t.Errorf("expected 405 with Allow POST, got %d %q", resp.StatusCode, resp.Header.Get("Allow"))
		}
	})
}

func TestStatusFor(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", shared.ErrInvalidArgument), http.StatusBadRequest},
		{shared.NewError(shared.KindUnauthenticated, "op", nil), http.StatusUnauthorized},
		{fmt.Errorf("%w: slow", shared.ErrTimeout), http.StatusGatewayTimeout},
		{shared.APIError("op", 500), http.StatusBadGateway},
	} {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRouter(t *testing.T) {
	t.Run("methods share a path", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/x", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "get") }))
		r.Handle(http.MethodPost, "/x", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "post") }))

		for method, want := range map[string]string{http.MethodGet: "get", http.MethodPost: "post"} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(method, "/x", nil))
			if rec.Body.String() != want {
				t.Errorf("%s: got %q", method, rec.Body.String())
			}
		}

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/x", nil))
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, POST" {
			t.Errorf("got %d %q", rec.Code, rec.Header().Get("Allow"))
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order: %v", order)
		}
	})

	t.Run("recover", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(Recover(shared.NewLogger(nil)))
		r.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env.Type, env.Data
}

func TestStateSocket(t *testing.T) {
	ctl := &fakeController{state: control.State{CurrentMood: models.Focus}}
	srv, ts := newTestServer(t, ctl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan control.Update, 4)
	go srv.Hub().Run(ctx)
	go RunBroadcaster(ctx, srv.Hub(), updates, shared.NewLogger(nil))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	kind, data := readEnvelope(t, conn)
	if kind != MessageStateInit || data["currentMood"] != "focus" {
		t.Fatalf("unexpected first message %s %v", kind, data)
	}

	deadline := time.Now().Add(time.Second)
	for srv.Hub().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	updates <- control.Update{Seq: 1, State: control.State{CurrentMood: models.Chill, Mode: control.Auto}}
	kind, data = readEnvelope(t, conn)
	if kind != MessageStateChanged || data["currentMood"] != "chill" || data["mode"] != "auto" {
		t.Errorf("unexpected update %s %v", kind, data)
	}

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection closed after hub stop")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub(shared.NewLogger(nil), HubConfig{SendBuf: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := &Client{id: "slow", hub: hub, send: make(chan []byte, 1), logger: shared.NewLogger(nil)}
	hub.register <- c

	deadline := time.Now().Add(time.Second)
	for hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	hub.BroadcastBytes([]byte("one"))
	hub.BroadcastBytes([]byte("two"))

	deadline = time.Now().Add(time.Second)
	for hub.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hub.Len() != 0 {
		t.Fatal("slow client not removed")
	}
	if msg := <-c.send; !bytes.Equal(msg, []byte("one")) {
		t.Errorf("expected first frame delivered, got %q", msg)
	}
	if _, ok := <-c.send; ok {
		t.Error("expected send channel closed")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestOAuthHandler(t *testing.T) {
	for _, tc := range []struct {
		name    string
		query   string
		status  int
		code    string
		wantErr bool
	}{
		{"success", "?state=s1&code=abc", http.StatusOK, "abc", false},
		{"state mismatch", "?state=other&code=abc", http.StatusBadRequest, "", true},
		{"denied", "?state=s1&error=access_denied", http.StatusBadRequest, "", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := NewOAuthHandler("/callback", "s1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tc.query, nil))

			if rec.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, rec.Code)
			}
			res := <-h.Result()
			if (res.Error() != nil) != tc.wantErr || res.Code != tc.code {
				t.Errorf("unexpected result %+v err=%v", res, res.Error())
			}
		})
	}

	t.Run("single callback", func(t *testing.T) {
		h := NewOAuthHandler("", "s1")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=a", nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=b", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("second callback accepted: %d", rec.Code)
		}
		if res := <-h.Result(); res.Code != "a" {
			t.Errorf("expected first code, got %q", res.Code)
		}
	})
}

func TestLoopbackAuthorizer(t *testing.T) {
	t.Run("captures the code from the redirect", func(t *testing.T) {
		addr := freeAddr(t)
		a, err := NewLoopbackAuthorizer("http://"+addr+"/callback", nil, shared.NewLogger(nil))
		if err != nil {
			t.Fatal(err)
		}
		var opened string
		a.Open = func(u string) error {
			opened = u
			go func() {
				resp, err := http.Get("http://" + addr + "/callback?state=st&code=the-code")
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}

		code, err := a.Authorize(context.Background(), "https://accounts.example/authorize?x=1", "st")
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if code != "the-code" || opened != "https://accounts.example/authorize?x=1" {
			t.Errorf("code %q opened %q", code, opened)
		}
	})

	t.Run("prints url when browser fails and times out", func(t *testing.T) {
		var prompt bytes.Buffer
		a, err := NewLoopbackAuthorizer("http://"+freeAddr(t)+"/cb", &prompt, nil)
		if err != nil {
			t.Fatal(err)
		}
		a.Timeout = 20 * time.Millisecond
		a.Open = func(string) error { return errors.New("no browser") }

		_, err = a.Authorize(context.Background(), "https://auth/url", "st")
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected timeout, got %v", err)
		}
		if !strings.Contains(prompt.String(), "https://auth/url") {
			t.Errorf("url not printed: %q", prompt.String())
		}
	})

	t.Run("context cancel", func(t *testing.T) {
		a, _ := NewLoopbackAuthorizer("http://"+freeAddr(t)+"/cb", nil, nil)
		a.Open = func(string) error { return nil }
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := a.Authorize(ctx, "u", "s"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected canceled, got %v", err)
		}
	})

	t.Run("invalid redirect", func(t *testing.T) {
		if _, err := NewLoopbackAuthorizer("not a url", nil, nil); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected invalid config, got %v", err)
		}
	})
}

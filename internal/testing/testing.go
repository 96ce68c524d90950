// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/neurotune/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Step is one canned round trip: either Err or a response built from Status, Header and Body.
type Step struct {
	Status int
	Header http.Header
	Body   string
	Err    error
}

// JSON returns a [Step] with a JSON content type.
func JSON(status int, body string) Step {
	return Step{Status: status, Header: http.Header{"Content-Type": {"application/json"}}, Body: body}
}

// SequenceRoundTripper replays steps in order and records every request it receives.
type SequenceRoundTripper struct {
	mu       sync.Mutex
	steps    []Step
	requests []*http.Request
	bodies   []string
}

func NewSequenceRoundTripper(steps ...Step) *SequenceRoundTripper {
	return &SequenceRoundTripper{steps: steps}
}

func (s *SequenceRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		req.Body.Close()
		body = string(data)
	}
	s.requests = append(s.requests, req)
	s.bodies = append(s.bodies, body)

	i := len(s.requests) - 1
	if i >= len(s.steps) {
		return nil, fmt.Errorf("unexpected request %d: %s %s", i+1, req.Method, req.URL)
	}

	step := s.steps[i]
	if step.Err != nil {
		return nil, step.Err
	}
	header := step.Header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: step.Status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(step.Body)),
		Request:    req,
	}, nil
}

// Client returns an [http.Client] using s as its transport.
func (s *SequenceRoundTripper) Client() *http.Client {
	return &http.Client{Transport: s}
}

// Requests returns the recorded requests.
func (s *SequenceRoundTripper) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// Bodies returns the recorded request bodies.
func (s *SequenceRoundTripper) Bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

// RecordingSleeper records requested sleeps instead of waiting.
type RecordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *RecordingSleeper) Sleeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

// StaticTokens is a token provider returning a fixed token.
type StaticTokens struct {
	Token string
	Err   error

	mu    sync.Mutex
	calls int
}

func (s *StaticTokens) ValidToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.Token, s.Err
}

func (s *StaticTokens) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FakePlayer records playback calls. Set Err to make every call fail with it.
//
// When Gate is non-nil, PlaylistsForMood blocks until it is closed or ctx is done.
type FakePlayer struct {
	mu        sync.Mutex
	calls     []string
	Track     *models.Track
	Playback  *models.Playback
	Upcoming  []models.Track
	Playlists map[models.Mood][]models.PlaylistRef
	Err       error
	Gate      chan struct{}
}

func (f *FakePlayer) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.Err
}

// Calls returns the recorded calls, e.g. "search:chill" or "play:spotify:playlist:abc".
func (f *FakePlayer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many recorded calls equal call.
func (f *FakePlayer) Count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *FakePlayer) CurrentTrack(ctx context.Context) (*models.Track, error) {
	if err := f.record("current"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Track, nil
}

func (f *FakePlayer) CurrentPlayback(ctx context.Context) (*models.Playback, error) {
	if err := f.record("playback"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Playback, nil
}

func (f *FakePlayer) TogglePlayback(ctx context.Context, play bool) error {
	return f.record(fmt.Sprintf("toggle:%t", play))
}

func (f *FakePlayer) SkipToNext(ctx context.Context) error {
	return f.record("next")
}

func (f *FakePlayer) SkipToPrevious(ctx context.Context) error {
	return f.record("previous")
}

func (f *FakePlayer) PlaylistsForMood(ctx context.Context, m models.Mood) ([]models.PlaylistRef, error) {
	if err := f.record("search:" + m.String()); err != nil {
		return nil, err
	}
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if refs, ok := f.Playlists[m]; ok {
		return refs, nil
	}
	return []models.PlaylistRef{{ID: m.String() + "-1", Name: m.String()}}, nil
}

func (f *FakePlayer) PlayPlaylist(ctx context.Context, uri string) error {
	return f.record("play:" + uri)
}

func (f *FakePlayer) QueueOrUpcoming(ctx context.Context) ([]models.Track, error) {
	if err := f.record("queue"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Upcoming, nil
}

// FakeSource serves queued samples, then repeats the last one. Err, when set, is returned instead.
type FakeSource struct {
	mu      sync.Mutex
	samples []models.BandSample
	err     error
	calls   int
}

func NewFakeSource(samples ...models.BandSample) *FakeSource {
	return &FakeSource{samples: samples}
}

// Set replaces the queued samples and error.
func (f *FakeSource) Set(err error, samples ...models.BandSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples, f.err = samples, err
}

func (f *FakeSource) Sample(ctx context.Context) (models.BandSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.BandSample{}, f.err
	}
	if len(f.samples) == 0 {
		return models.BandSample{}, errors.New("no samples")
	}
	s := f.samples[0]
	if len(f.samples) > 1 {
		f.samples = f.samples[1:]
	}
	return s, nil
}

func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeAuth is an authenticator that flips a flag.
type FakeAuth struct {
	mu       sync.Mutex
	LoggedIn bool
	LoginErr error
	logins   int
}

func (f *FakeAuth) Login(ctx context.Context) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	f.LoggedIn = true
	return &models.Credential{AccessToken: "fake", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *FakeAuth) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoggedIn = false
	return nil
}

func (f *FakeAuth) IsAuthenticated(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LoggedIn
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met after %v: "+msg, append([]any{timeout}, args...)...)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

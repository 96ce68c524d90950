package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/neurotune/internal/auth"
	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/formatter"
	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/repositories"
	"github.com/desertthunder/neurotune/internal/services"
	"github.com/desertthunder/neurotune/internal/shared"
	tu "github.com/desertthunder/neurotune/internal/testing"
	"github.com/urfave/cli/v3"
)

// checkingPlayer adds the session check endpoints to [tu.FakePlayer].
type checkingPlayer struct {
	*tu.FakePlayer
	up   bool
	user *services.SpotifyUser
}

func (p *checkingPlayer) Available(ctx context.Context) bool { return p.up }
func (p *checkingPlayer) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	return p.user, nil
}

type fixture struct {
	runner *Runner
	out    *bytes.Buffer
	player *tu.FakePlayer
	auth   *tu.FakeAuth
	source *tu.FakeSource
	config *shared.Config
}

func newFixture(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	f := &fixture{
		out:    &bytes.Buffer{},
		player: &tu.FakePlayer{},
		auth:   &tu.FakeAuth{LoggedIn: loggedIn},
		source: tu.NewFakeSource(),
		config: shared.DefaultConfig(),
	}
	f.config.Database.Path = filepath.Join(t.TempDir(), "neurotune.db")
	f.runner = NewRunner(RunnerOpts{
		Config: f.config,
		Output: f.out,
		Player: f.player,
		Auth:   f.auth,
		Source: f.source,
	})
	t.Cleanup(func() { f.runner.Close() })
	return f
}

// run executes the CLI with a config path that does not exist, so the injected config is kept.
func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	argv := append([]string{"neurotune", "--config", filepath.Join(t.TempDir(), "missing.toml")}, args...)
	return f.runner.App().Run(context.Background(), argv)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.format != formatter.Text {
				t.Errorf("expected text format, got %q", runner.format)
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range NewRunner(RunnerOpts{}).register() {
			names[c.Name] = true
		}
		for _, want := range []string{"setup", "auth", "playback", "mood", "run", "tui"} {
			if !names[want] {
				t.Errorf("missing command %q", want)
			}
		}
	})

	t.Run("Before", func(t *testing.T) {
		t.Run("loads config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[eeg]\nurl = \"http://eeg.local:9000\"\n"), 0644); err != nil {
				t.Fatal(err)
			}
			f := newFixture(t, true)
			f.source.Set(nil, models.BandSample{Alpha: 3, Theta: 5})
			if err := f.runner.App().Run(context.Background(), []string{"neurotune", "-c", path, "mood", "classify"}); err != nil {
				t.Fatal(err)
			}
			if f.runner.config.EEG.URL != "http://eeg.local:9000" {
				t.Errorf("config not loaded: %s", f.runner.config.EEG.URL)
			}
			if f.runner.config.Playback.PollIntervalMs != 5000 {
				t.Errorf("defaults lost for missing keys: %d", f.runner.config.Playback.PollIntervalMs)
			}
		})

		t.Run("rejects unknown format", func(t *testing.T) {
			f := newFixture(t, true)
			if err := f.run(t, "--format", "xml", "playback", "now"); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected invalid argument, got %v", err)
			}
		})

		t.Run("rejects unknown log level", func(t *testing.T) {
			f := newFixture(t, true)
			if err := f.run(t, "--log-level", "loud", "playback", "now"); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected invalid argument, got %v", err)
			}
		})
	})
}

func TestPlaybackCommands(t *testing.T) {
	track := &models.Track{ID: "t1", Name: "Weightless", Artist: "Marconi Union", Album: "Ambient", DurationMs: 480000}

	t.Run("requires a session", func(t *testing.T) {
		for _, sub := range []string{"now", "toggle", "next", "prev", "queue"} {
			f := newFixture(t, false)
			err := f.run(t, "playback", sub)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("%s: expected not authenticated, got %v", sub, err)
			}
			if len(f.player.Calls()) != 0 {
				t.Errorf("%s: player called without session: %v", sub, f.player.Calls())
			}
		}
	})

	t.Run("now", func(t *testing.T) {
		f := newFixture(t, true)
		f.player.Playback = &models.Playback{IsPlaying: true, Item: track}
		if err := f.run(t, "--format", "json", "playback", "now"); err != nil {
			t.Fatal(err)
		}
		var payload struct {
			Track     models.Track `json:"track"`
			IsPlaying bool         `json:"isPlaying"`
		}
		if err := json.Unmarshal(f.out.Bytes(), &payload); err != nil {
			t.Fatalf("invalid JSON %q: %v", f.out.String(), err)
		}
		if payload.Track.ID != "t1" || !payload.IsPlaying {
			t.Errorf("unexpected payload %+v", payload)
		}
	})

	t.Run("now with nothing playing", func(t *testing.T) {
		f := newFixture(t, true)
		if err := f.run(t, "playback", "now"); err != nil {
			t.Fatal(err)
		}
		if f.out.String() != "Nothing playing\n" {
			t.Errorf("unexpected output %q", f.out.String())
		}
	})

	t.Run("toggle pauses when playing", func(t *testing.T) {
		f := newFixture(t, true)
		f.player.Playback = &models.Playback{IsPlaying: true, Item: track}
		if err := f.run(t, "playback", "toggle"); err != nil {
			t.Fatal(err)
		}
		if f.player.Count("toggle:false") != 1 || !strings.Contains(f.out.String(), "Paused") {
			t.Errorf("calls %v, output %q", f.player.Calls(), f.out.String())
		}
	})

	t.Run("toggle resumes when idle", func(t *testing.T) {
		f := newFixture(t, true)
		if err := f.run(t, "playback", "toggle"); err != nil {
			t.Fatal(err)
		}
		if f.player.Count("toggle:true") != 1 {
			t.Errorf("calls %v", f.player.Calls())
		}
	})

	t.Run("skips", func(t *testing.T) {
		f := newFixture(t, true)
		if err := f.run(t, "playback", "next"); err != nil {
			t.Fatal(err)
		}
		if err := f.run(t, "playback", "previous"); err != nil {
			t.Fatal(err)
		}
		if f.player.Count("next") != 1 || f.player.Count("previous") != 1 {
			t.Errorf("calls %v", f.player.Calls())
		}
	})

	t.Run("queue as csv", func(t *testing.T) {
		f := newFixture(t, true)
		f.player.Upcoming = []models.Track{*track}
		if err := f.run(t, "-f", "csv", "playback", "queue"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(f.out.String(), "t1,Weightless,Marconi Union,Ambient,480000,") {
			t.Errorf("unexpected CSV %q", f.out.String())
		}
	})

	t.Run("player error propagates", func(t *testing.T) {
		f := newFixture(t, true)
		f.player.Err = shared.NewError(shared.KindSessionExpired, "skip", nil)
		if err := f.run(t, "playback", "next"); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected session expired, got %v", err)
		}
	})
}

func TestMoodCommands(t *testing.T) {
	t.Run("classify reads the feed", func(t *testing.T) {
		f := newFixture(t, false)
		f.source.Set(nil, models.BandSample{Alpha: 3, Theta: 5})
		if err := f.run(t, "mood", "classify"); err != nil {
			t.Fatal(err)
		}
		out := f.out.String()
		if !strings.Contains(out, "Mood: chill") || strings.Contains(out, "fallback") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("classify falls back when the feed fails", func(t *testing.T) {
		f := newFixture(t, false)
		f.source.Set(shared.NewError(shared.KindSensorUnavailable, "sample", nil))
		if err := f.run(t, "--format", "yaml", "mood", "classify"); err != nil {
			t.Fatal(err)
		}
		out := f.out.String()
		if !strings.Contains(out, "mood: energy") || !strings.Contains(out, "stale: true") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("classify simulate skips the feed", func(t *testing.T) {
		f := newFixture(t, false)
		if err := f.run(t, "mood", "classify", "--simulate"); err != nil {
			t.Fatal(err)
		}
		if f.source.Calls() != 0 {
			t.Errorf("feed read %d times", f.source.Calls())
		}
	})

	t.Run("play starts the first playlist", func(t *testing.T) {
		f := newFixture(t, true)
		if err := f.run(t, "mood", "play", "energy"); err != nil {
			t.Fatal(err)
		}
		calls := f.player.Calls()
		if len(calls) != 2 || calls[0] != "search:energy" || calls[1] != "play:spotify:playlist:energy-1" {
			t.Errorf("calls %v", calls)
		}
	})

	t.Run("play --list only lists", func(t *testing.T) {
		f := newFixture(t, true)
		if err := f.run(t, "mood", "play", "--list", "chill"); err != nil {
			t.Fatal(err)
		}
		if f.player.Count("play:spotify:playlist:chill-1") != 0 {
			t.Errorf("playlist started: %v", f.player.Calls())
		}
		if !strings.Contains(f.out.String(), "Playlists for chill:") {
			t.Errorf("unexpected output %q", f.out.String())
		}
	})

	t.Run("play with no results", func(t *testing.T) {
		f := newFixture(t, true)
		f.player.Playlists = map[models.Mood][]models.PlaylistRef{models.Focus: nil}
		if err := f.run(t, "mood", "play", "focus"); !errors.Is(err, control.ErrNoPlaylist) {
			t.Errorf("expected no playlist, got %v", err)
		}
	})

	t.Run("play validates the mood", func(t *testing.T) {
		f := newFixture(t, true)
		if err := f.run(t, "mood", "play", "sleepy"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
		if err := f.run(t, "mood", "play"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument, got %v", err)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("login and logout", func(t *testing.T) {
		f := newFixture(t, false)
		if err := f.run(t, "auth", "login"); err != nil {
			t.Fatal(err)
		}
		if !f.auth.IsAuthenticated(context.Background()) || !strings.Contains(f.out.String(), "Logged in") {
			t.Errorf("login did not complete: %q", f.out.String())
		}
		if err := f.run(t, "auth", "logout"); err != nil {
			t.Fatal(err)
		}
		if f.auth.IsAuthenticated(context.Background()) {
			t.Error("still authenticated after logout")
		}
	})

	t.Run("login failure", func(t *testing.T) {
		f := newFixture(t, false)
		f.auth.LoginErr = shared.NewError(shared.KindAuth, "login", errors.New("access_denied"))
		if err := f.run(t, "auth", "login"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected auth failure, got %v", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		f := newFixture(t, true)
		if err := f.run(t, "--format", "json", "auth", "status"); err != nil {
			t.Fatal(err)
		}
		var status authStatus
		if err := json.Unmarshal(f.out.Bytes(), &status); err != nil || !status.Authenticated {
			t.Errorf("unexpected status %q: %v", f.out.String(), err)
		}

		f = newFixture(t, true)
		f.runner.player = &checkingPlayer{FakePlayer: f.player, up: true, user: &services.SpotifyUser{ID: "u1", DisplayName: "Ada", Product: "premium"}}
		if err := f.run(t, "auth", "status"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(f.out.String(), "User: Ada (premium)") {
			t.Errorf("unexpected output %q", f.out.String())
		}

		f = newFixture(t, true)
		f.runner.player = &checkingPlayer{FakePlayer: f.player}
		if err := f.run(t, "auth", "status"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected service unavailable, got %v", err)
		}

		f = newFixture(t, false)
		if err := f.run(t, "auth", "status"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(f.out.String(), "Not logged in") {
			t.Errorf("unexpected output %q", f.out.String())
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		f := newFixture(t, false)
		app := func(args ...string) error {
			return f.runner.App().Run(context.Background(), append([]string{"neurotune", "--config", path, "setup", "config"}, args...))
		}

		if err := app(); err != nil {
			t.Fatal(err)
		}
		tu.AssertFileExists(t, path)
		if err := app(); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected refusal to overwrite, got %v", err)
		}
		if err := app("--force"); err != nil {
			t.Errorf("force overwrite failed: %v", err)
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("written config does not load: %v", err)
		}
	})

	t.Run("database", func(t *testing.T) {
		f := newFixture(t, false)
		if err := f.run(t, "setup", "database"); err != nil {
			t.Fatal(err)
		}
		tu.AssertFileExists(t, f.config.Database.Path)
	})
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	cred := &models.Credential{AccessToken: "a", RefreshToken: "r"}

	tests := []struct {
		driver string
		check  func(t *testing.T, s auth.TokenStore)
	}{
		{"memory", func(t *testing.T, s auth.TokenStore) {
			if _, ok := s.(*auth.MemoryStore); !ok {
				t.Errorf("got %T", s)
			}
		}},
		{"file", func(t *testing.T, s auth.TokenStore) {
			if _, ok := s.(*auth.FileStore); !ok {
				t.Errorf("got %T", s)
			}
		}},
		{"sqlite", func(t *testing.T, s auth.TokenStore) {
			if _, ok := s.(*repositories.CredentialRepository); !ok {
				t.Errorf("got %T", s)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			f := newFixture(t, false)
			f.config.Storage.Driver = tt.driver
			f.config.Storage.Path = filepath.Join(t.TempDir(), "tokens.json")
			f.config.Database.Path = ":memory:"

			store, err := f.runner.tokenStore()
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, store)
			if err := store.Set(ctx, cred); err != nil {
				t.Fatal(err)
			}
			got, err := store.Get(ctx)
			if err != nil || got == nil || got.AccessToken != "a" {
				t.Errorf("round trip failed: %+v %v", got, err)
			}
		})
	}

	t.Run("unknown driver", func(t *testing.T) {
		f := newFixture(t, false)
		f.config.Storage.Driver = "redis"
		if _, err := f.runner.tokenStore(); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected invalid config, got %v", err)
		}
	})
}

func TestConnect(t *testing.T) {
	t.Run("missing client id", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		if err := runner.connect(); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected missing credentials, got %v", err)
		}
	})

	t.Run("builds session and player from config", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = "client"
		config.Storage.Driver = "memory"
		runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})

		if err := runner.connect(); err != nil {
			t.Fatal(err)
		}
		if _, ok := runner.auth.(*auth.Controller); !ok {
			t.Errorf("auth is %T", runner.auth)
		}
		if runner.player == nil {
			t.Error("player not built")
		}
		if runner.auth.IsAuthenticated(context.Background()) {
			t.Error("fresh memory store should not be authenticated")
		}
	})
}

func TestNewLoop(t *testing.T) {
	f := newFixture(t, true)
	f.config.EEG.AutoStart = true
	f.config.Gestures.Enabled = true

	var loop *control.Loop
	cmd := runCommand(f.runner)
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		var err error
		loop, err = f.runner.newLoop(c)
		return err
	}
	if err := cmd.Run(context.Background(), []string{"run", "--mood", "chill", "--gestures=false"}); err != nil {
		t.Fatal(err)
	}

	s := loop.Snapshot()
	if s.Mode != control.Auto || s.CurrentMood != models.Chill || s.GestureEnabled {
		t.Errorf("unexpected initial state %+v", s)
	}
}

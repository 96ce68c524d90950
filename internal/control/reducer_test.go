package control

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/shared"
)

var (
	focusSample  = models.BandSample{Beta: 3, Gamma: 5}
	energySample = models.BandSample{Beta: 3, Alpha: 3}
	chillSample  = models.BandSample{Alpha: 3, Theta: 5}
)

func autoState() State {
	s := InitialState()
	s.Mode = Auto
	s.Authenticated = true
	return s
}

func effectsOf[T Effect](effects []Effect) []T {
	var out []T
	for _, e := range effects {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestReduceSamples(t *testing.T) {
	cfg := DefaultLoopConfig()

	t.Run("auto flip emits a single playlist change", func(t *testing.T) {
		res := Reduce(autoState(), SampleReceived{Sample: chillSample}, cfg)

		if res.State.CurrentMood != models.Chill {
			t.Fatalf("expected chill, got %s", res.State.CurrentMood)
		}
		if res.State.Generation != 1 {
			t.Errorf("expected generation 1, got %d", res.State.Generation)
		}
		changes := effectsOf[ChangePlaylist](res.Effects)
		if len(changes) != 1 || changes[0].Mood != models.Chill || changes[0].Generation != 1 {
			t.Errorf("unexpected effects: %v", res.Effects)
		}
		if !res.State.Loading {
			t.Error("expected loading while the playlist changes")
		}
	})

	t.Run("same mood does nothing", func(t *testing.T) {
		res := Reduce(autoState(), SampleReceived{Sample: focusSample}, cfg)
		if len(res.Effects) != 0 {
			t.Errorf("expected no effects, got %v", res.Effects)
		}
		if res.State.Generation != 0 {
			t.Errorf("generation changed: %d", res.State.Generation)
		}
	})

	t.Run("manual mode only updates the display", func(t *testing.T) {
		s := InitialState()
		res := Reduce(s, SampleReceived{Sample: chillSample}, cfg)

		if res.State.CurrentMood != models.Focus {
			t.Errorf("manual mood must not change, got %s", res.State.CurrentMood)
		}
		if res.State.Sample == nil || res.State.Sample.Theta != 5 {
			t.Errorf("expected display sample, got %+v", res.State.Sample)
		}
		if len(res.Effects) != 0 {
			t.Errorf("expected no effects, got %v", res.Effects)
		}
	})

	t.Run("stability requires consecutive agreement", func(t *testing.T) {
		cfg := cfg
		cfg.Stability = 2

		s := autoState()
		s = Reduce(s, SampleReceived{Sample: chillSample}, cfg).State
		if s.CurrentMood != models.Focus {
			t.Fatal("flipped after one sample")
		}

		s = Reduce(s, SampleReceived{Sample: energySample}, cfg).State
		if s.CurrentMood != models.Focus {
			t.Fatal("a different candidate must restart the streak")
		}

		res := Reduce(s, SampleReceived{Sample: energySample}, cfg)
		if res.State.CurrentMood != models.Energy {
			t.Fatalf("expected energy after two agreeing samples, got %s", res.State.CurrentMood)
		}
		if len(effectsOf[ChangePlaylist](res.Effects)) != 1 {
			t.Errorf("expected one change, got %v", res.Effects)
		}
	})

	t.Run("failure keeps mood and uses fallback display sample", func(t *testing.T) {
		res := Reduce(autoState(), SampleFailed{Err: shared.ErrSensorUnavailable}, cfg)

		if !res.State.Stale {
			t.Error("expected stale flag")
		}
		if res.State.CurrentMood != models.Focus || len(res.Effects) != 0 {
			t.Errorf("failure must never drive a change: %+v %v", res.State.CurrentMood, res.Effects)
		}
		if res.State.Sample == nil || res.State.Sample.Alpha != 2.0 {
			t.Errorf("expected simulated sample, got %+v", res.State.Sample)
		}
		if res.State.Intensity != 60 {
			t.Errorf("expected intensity 60, got %d", res.State.Intensity)
		}
	})

	t.Run("failure keeps last known sample", func(t *testing.T) {
		s := Reduce(InitialState(), SampleReceived{Sample: chillSample}, cfg).State
		res := Reduce(s, SampleFailed{Err: errors.New("down")}, cfg)
		if res.State.Sample == nil || res.State.Sample.Theta != 5 {
			t.Errorf("expected last known sample, got %+v", res.State.Sample)
		}

		res = Reduce(res.State, SampleReceived{Sample: focusSample}, cfg)
		if res.State.Stale {
			t.Error("fresh sample must clear stale")
		}
	})
}

func TestReduceModes(t *testing.T) {
	cfg := DefaultLoopConfig()

	t.Run("toggle starts and stops polling", func(t *testing.T) {
		res := Reduce(InitialState(), ModeToggled{}, cfg)
		if res.State.Mode != Auto || len(effectsOf[StartPolling](res.Effects)) != 1 {
			t.Fatalf("expected auto with StartPolling, got %s %v", res.State.Mode, res.Effects)
		}

		res = Reduce(res.State, ModeToggled{}, cfg)
		if res.State.Mode != Manual || len(effectsOf[StopPolling](res.Effects)) != 1 {
			t.Fatalf("expected manual with StopPolling, got %s %v", res.State.Mode, res.Effects)
		}
	})

	t.Run("setting the current mode is a no-op", func(t *testing.T) {
		res := Reduce(InitialState(), ModeSet{Mode: Manual}, cfg)
		if len(res.Effects) != 0 {
			t.Errorf("expected no effects, got %v", res.Effects)
		}
	})

	t.Run("selecting a mood in auto switches to manual", func(t *testing.T) {
		res := Reduce(autoState(), MoodSelected{Mood: models.Chill}, cfg)
		if res.State.Mode != Manual {
			t.Errorf("expected manual, got %s", res.State.Mode)
		}
		if len(effectsOf[StopPolling](res.Effects)) != 1 {
			t.Errorf("expected StopPolling, got %v", res.Effects)
		}
		if c := effectsOf[ChangePlaylist](res.Effects); len(c) != 1 || c[0].Mood != models.Chill {
			t.Errorf("expected chill change, got %v", res.Effects)
		}
	})

	t.Run("selecting the same mood restarts its playlist", func(t *testing.T) {
		res := Reduce(InitialState(), MoodSelected{Mood: models.Focus}, cfg)
		if len(effectsOf[ChangePlaylist](res.Effects)) != 1 {
			t.Errorf("expected change, got %v", res.Effects)
		}
	})

	t.Run("every change bumps the generation", func(t *testing.T) {
		s := InitialState()
		s = Reduce(s, MoodSelected{Mood: models.Chill}, cfg).State
		s = Reduce(s, MoodSelected{Mood: models.Energy}, cfg).State
		if s.Generation != 2 {
			t.Errorf("expected generation 2, got %d", s.Generation)
		}
	})

	t.Run("leaving auto abandons a pending automatic change", func(t *testing.T) {
		flip := Reduce(autoState(), SampleReceived{Sample: chillSample}, cfg)
		pending := effectsOf[ChangePlaylist](flip.Effects)
		if len(pending) != 1 {
			t.Fatalf("expected a pending change, got %v", flip.Effects)
		}

		res := Reduce(flip.State, ModeSet{Mode: Manual}, cfg)
		if res.State.Loading {
			t.Error("expected loading cleared")
		}
		if res.State.Generation == pending[0].Generation {
			t.Errorf("expected generation past %d", pending[0].Generation)
		}

		late := Reduce(res.State, PlaylistStarted{Generation: pending[0].Generation, Playlist: models.PlaylistRef{ID: "late"}}, cfg)
		if late.State.CurrentPlaylist != nil {
			t.Errorf("abandoned change applied: %+v", late.State.CurrentPlaylist)
		}
	})

	t.Run("leaving auto keeps a pending manual change", func(t *testing.T) {
		s := Reduce(InitialState(), MoodSelected{Mood: models.Chill}, cfg).State
		s = Reduce(s, ModeSet{Mode: Auto}, cfg).State
		res := Reduce(s, ModeSet{Mode: Manual}, cfg)
		if !res.State.Loading || res.State.Generation != 1 {
			t.Errorf("manual change dropped: loading=%v generation=%d", res.State.Loading, res.State.Generation)
		}
	})
}

func TestReducePlaylistOutcome(t *testing.T) {
	cfg := DefaultLoopConfig()
	s := Reduce(InitialState(), MoodSelected{Mood: models.Chill}, cfg).State
	playlist := models.PlaylistRef{ID: "abc", Name: "Chill"}

	t.Run("started schedules settle refresh", func(t *testing.T) {
		res := Reduce(s, PlaylistStarted{Generation: s.Generation, Playlist: playlist}, cfg)
		if res.State.CurrentPlaylist == nil || res.State.CurrentPlaylist.ID != "abc" {
			t.Errorf("expected current playlist, got %+v", res.State.CurrentPlaylist)
		}
		if res.State.Loading {
			t.Error("expected loading cleared")
		}
		r := effectsOf[RefreshAfter](res.Effects)
		if len(r) != 1 || r[0].Delay != 3*time.Second {
			t.Errorf("expected refresh after 3s, got %v", res.Effects)
		}
	})

	t.Run("stale generation ignored", func(t *testing.T) {
		res := Reduce(s, PlaylistStarted{Generation: s.Generation - 1, Playlist: playlist}, cfg)
		if res.State.CurrentPlaylist != nil || len(res.Effects) != 0 {
			t.Errorf("superseded outcome applied: %+v %v", res.State.CurrentPlaylist, res.Effects)
		}
	})

	t.Run("failure records error and keeps mood", func(t *testing.T) {
		res := Reduce(s, PlaylistFailed{Generation: s.Generation, Err: ErrNoPlaylist}, cfg)
		if res.State.LastError == "" || res.State.Loading {
			t.Errorf("unexpected state: %+v", res.State)
		}
		if res.State.CurrentMood != models.Chill {
			t.Errorf("mood must stay chill, got %s", res.State.CurrentMood)
		}
	})
}

func TestReduceGestures(t *testing.T) {
	cfg := DefaultLoopConfig()
	enabled := autoState()
	enabled.GestureEnabled = true

	t.Run("detected gesture skips and schedules clear", func(t *testing.T) {
		res := Reduce(enabled, GestureDetected{Gesture: models.GestureRight}, cfg)
		if res.State.ActiveGesture != models.GestureRight {
			t.Errorf("expected active right, got %s", res.State.ActiveGesture)
		}
		skips := effectsOf[Skip](res.Effects)
		if len(skips) != 1 || skips[0].Direction != models.GestureRight {
			t.Errorf("expected one skip, got %v", res.Effects)
		}
		clears := effectsOf[ClearGestureAfter](res.Effects)
		if len(clears) != 1 || clears[0].Delay != time.Second {
			t.Errorf("expected clear after 1s, got %v", res.Effects)
		}
	})

	t.Run("active gesture debounces", func(t *testing.T) {
		s := Reduce(enabled, GestureDetected{Gesture: models.GestureRight}, cfg).State
		res := Reduce(s, GestureDetected{Gesture: models.GestureLeft}, cfg)
		if len(res.Effects) != 0 || res.State.ActiveGesture != models.GestureRight {
			t.Errorf("second gesture during cooldown applied: %v", res.Effects)
		}
	})

	t.Run("clear only matches its own sequence", func(t *testing.T) {
		s := Reduce(enabled, GestureDetected{Gesture: models.GestureLeft}, cfg).State
		if got := Reduce(s, GestureCleared{Seq: s.GestureSeq - 1}, cfg).State.ActiveGesture; got != models.GestureLeft {
			t.Errorf("old clear applied, got %s", got)
		}
		if got := Reduce(s, GestureCleared{Seq: s.GestureSeq}, cfg).State.ActiveGesture; got != models.GestureNone {
			t.Errorf("expected cleared, got %s", got)
		}
	})

	t.Run("disabled ignores gestures", func(t *testing.T) {
		res := Reduce(autoState(), GestureDetected{Gesture: models.GestureRight}, cfg)
		if len(res.Effects) != 0 || res.State.ActiveGesture != models.GestureNone {
			t.Errorf("gesture applied while disabled: %v", res.Effects)
		}
	})

	t.Run("disabling clears active and invalidates pending skips", func(t *testing.T) {
		s := Reduce(enabled, GestureDetected{Gesture: models.GestureRight}, cfg).State
		seq := s.GestureSeq
		s = Reduce(s, GesturesToggled{Enabled: false}, cfg).State
		if s.ActiveGesture != models.GestureNone || s.GestureSeq == seq {
			t.Errorf("unexpected state after disable: %+v", s)
		}
	})

	t.Run("skip refresh delay", func(t *testing.T) {
		res := Reduce(enabled, Skipped{Next: true}, cfg)
		r := effectsOf[RefreshAfter](res.Effects)
		if len(r) != 1 || r[0].Delay != 2*time.Second {
			t.Errorf("expected refresh after 2s, got %v", res.Effects)
		}
	})
}

func TestReduceSession(t *testing.T) {
	cfg := DefaultLoopConfig()

	t.Run("auth failure ends session", func(t *testing.T) {
		err := shared.NewError(shared.KindSessionExpired, "refresh", nil)
		res := Reduce(autoState(), RemoteFailed{Op: "refresh", Err: err}, cfg)
		if res.State.Authenticated {
			t.Error("expected unauthenticated")
		}
		if res.State.LastError == "" {
			t.Error("expected last error")
		}
	})

	t.Run("other failures keep session", func(t *testing.T) {
		res := Reduce(autoState(), RemoteFailed{Op: "refresh", Err: shared.APIError("refresh", 500)}, cfg)
		if !res.State.Authenticated {
			t.Error("non-auth failure ended the session")
		}
	})

	t.Run("logout clears playback view", func(t *testing.T) {
		s := autoState()
		s.CurrentTrack = &models.Track{ID: "t1"}
		s.Queue = []models.Track{{ID: "t2"}}
		s.CurrentPlaylist = &models.PlaylistRef{ID: "p"}
		s.IsPlaying = true

		res := Reduce(s, LoggedOut{}, cfg)
		if res.State.Authenticated || res.State.CurrentTrack != nil || res.State.Queue != nil ||
			res.State.CurrentPlaylist != nil || res.State.IsPlaying {
			t.Errorf("logout left state behind: %+v", res.State)
		}
		if res.State.Generation != s.Generation+1 {
			t.Error("logout must supersede pending playlist changes")
		}
	})

	t.Run("login refreshes immediately", func(t *testing.T) {
		res := Reduce(InitialState(), LoggedIn{}, cfg)
		if !res.State.Authenticated {
			t.Error("expected authenticated")
		}
		if r := effectsOf[RefreshAfter](res.Effects); len(r) != 1 || r[0].Delay != 0 {
			t.Errorf("expected immediate refresh, got %v", res.Effects)
		}
	})

	t.Run("observed playback", func(t *testing.T) {
		pb := &models.Playback{IsPlaying: true, Item: &models.Track{ID: "t1"}}
		res := Reduce(autoState(), PlaybackObserved{Playback: pb, Queue: []models.Track{{ID: "t2"}}}, cfg)
		if !res.State.IsPlaying || res.State.CurrentTrack.ID != "t1" || len(res.State.Queue) != 1 {
			t.Errorf("unexpected state: %+v", res.State)
		}

		res = Reduce(res.State, PlaybackObserved{}, cfg)
		if res.State.CurrentTrack != nil || res.State.IsPlaying {
			t.Error("nothing playing must clear the track")
		}
	})
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"manual", Manual, false},
		{"AUTO", Auto, false},
		{" auto ", Auto, false},
		{"eeg", Manual, true},
	} {
		got, err := ParseMode(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseMode(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestConfigFrom(t *testing.T) {
	c := shared.DefaultConfig()
	c.EEG.Stability = 3
	c.Playback.SettleDelayMs = 500

	cfg := ConfigFrom(c)
	if cfg.Stability != 3 || cfg.SettleDelay != 500*time.Millisecond {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.EEGInterval != 2*time.Second || cfg.GestureCooldown != time.Second {
		t.Errorf("defaults not carried: %+v", cfg)
	}
}

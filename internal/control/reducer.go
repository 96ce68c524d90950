package control

import (
	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/mood"
	"github.com/desertthunder/neurotune/internal/shared"
)

// Result is the outcome of one reduction.
type Result struct {
	State   State
	Effects []Effect
}

// Reduce computes the next state and the effects to run for ev. It performs no I/O.
func Reduce(s State, ev Event, cfg Config) Result {
	if cfg.Stability < 1 {
		cfg.Stability = 1
	}

	switch e := ev.(type) {
	case SampleReceived:
		return reduceSample(s, e.Sample, cfg)

	case SampleFailed:
		s.Stale = true
		if s.Sample == nil {
			fallback := models.SimulatedSample()
			s.Sample = &fallback
			s.Intensity = mood.Intensity(fallback)
		}
		return Result{State: s}

	case MoodSelected:
		var effects []Effect
		if s.Mode == Auto {
			s.Mode = Manual
			effects = append(effects, StopPolling{})
		}
		return changeMood(s, e.Mood, effects)

	case ModeToggled:
		next := Auto
		if s.Mode == Auto {
			next = Manual
		}
		return Reduce(s, ModeSet{Mode: next}, cfg)

	case ModeSet:
		if e.Mode == s.Mode {
			return Result{State: s}
		}
		s.Mode = e.Mode
		s.streak = 0
		if e.Mode == Auto {
			return Result{State: s, Effects: []Effect{StartPolling{}}}
		}
		// A playlist change the classifier asked for no longer applies.
		if s.Loading && s.autoChange {
			s.Generation++
			s.Loading = false
			s.autoChange = false
		}
		return Result{State: s, Effects: []Effect{StopPolling{}}}

	case GestureDetected:
		if !s.GestureEnabled || s.ActiveGesture != models.GestureNone || e.Gesture == models.GestureNone {
			return Result{State: s}
		}
		s.GestureSeq++
		s.ActiveGesture = e.Gesture
		effects := []Effect{ClearGestureAfter{Seq: s.GestureSeq, Delay: cfg.GestureCooldown}}
		if s.Authenticated {
			effects = append(effects, Skip{Direction: e.Gesture, Seq: s.GestureSeq})
		}
		return Result{State: s, Effects: effects}

	case GestureCleared:
		if e.Seq == s.GestureSeq {
			s.ActiveGesture = models.GestureNone
		}
		return Result{State: s}

	case GesturesToggled:
		s.GestureEnabled = e.Enabled
		if !e.Enabled {
			s.ActiveGesture = models.GestureNone
			s.GestureSeq++
		}
		return Result{State: s}

	case PlaybackObserved:
		s.CurrentTrack, s.IsPlaying = nil, false
		if e.Playback != nil {
			s.IsPlaying = e.Playback.IsPlaying
			if e.Playback.Item != nil {
				t := *e.Playback.Item
				s.CurrentTrack = &t
			}
		}
		s.Queue = append([]models.Track(nil), e.Queue...)
		return Result{State: s}

	case PlaybackToggled:
		s.IsPlaying = e.Playing
		return Result{State: s}

	case Skipped:
		return Result{State: s, Effects: []Effect{RefreshAfter{Delay: cfg.SkipRefreshDelay}}}

	case PlaylistStarted:
		if e.Generation != s.Generation {
			return Result{State: s}
		}
		p := e.Playlist
		s.CurrentPlaylist = &p
		s.Loading = false
		s.LastError = ""
		return Result{State: s, Effects: []Effect{RefreshAfter{Delay: cfg.SettleDelay}}}

	case PlaylistFailed:
		if e.Generation != s.Generation {
			return Result{State: s}
		}
		s.Loading = false
		return Result{State: failed(s, e.Err)}

	case RemoteFailed:
		return Result{State: failed(s, e.Err)}

	case AuthChecked:
		s.Authenticated = e.Authenticated
		if e.Authenticated {
			return Result{State: s, Effects: []Effect{RefreshAfter{}}}
		}
		return Result{State: s}

	case LoginStarted:
		s.Loading = true
		return Result{State: s}

	case LoggedIn:
		s.Authenticated = true
		s.Loading = false
		s.LastError = ""
		return Result{State: s, Effects: []Effect{RefreshAfter{}}}

	case LoginFailed:
		s.Loading = false
		if e.Err != nil {
			s.LastError = e.Err.Error()
		}
		return Result{State: s}

	case LoggedOut:
		s.Authenticated = false
		s.Loading = false
		s.CurrentTrack = nil
		s.IsPlaying = false
		s.Queue = nil
		s.CurrentPlaylist = nil
		s.Generation++
		s.GestureSeq++
		s.ActiveGesture = models.GestureNone
		return Result{State: s}
	}

	return Result{State: s}
}

// reduceSample applies a fresh reading. Only Auto mode lets it drive the mood, and only after
// Stability consecutive samples agree on the same new mood.
func reduceSample(s State, sample models.BandSample, cfg Config) Result {
	s.Sample = &sample
	s.Stale = false
	s.Intensity = mood.Intensity(sample)

	if s.Mode != Auto {
		return Result{State: s}
	}

	classified := mood.Classify(sample)
	if classified == s.CurrentMood {
		s.streak = 0
		return Result{State: s}
	}

	if s.streak > 0 && s.candidate == classified {
		s.streak++
	} else {
		s.candidate = classified
		s.streak = 1
	}
	if s.streak < cfg.Stability {
		return Result{State: s}
	}
	res := changeMood(s, classified, nil)
	res.State.autoChange = true
	return res
}

func changeMood(s State, m models.Mood, effects []Effect) Result {
	s.CurrentMood = m
	s.streak = 0
	s.Generation++
	s.Loading = true
	s.autoChange = false
	effects = append(effects, ChangePlaylist{Mood: m, Generation: s.Generation})
	return Result{State: s, Effects: effects}
}

// failed records err. Authentication failures end the session.
func failed(s State, err error) State {
	if err == nil {
		return s
	}
	s.LastError = err.Error()
	if shared.IsAuthKind(err) {
		s.Authenticated = false
	}
	return s
}

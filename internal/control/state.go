package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/shared"
)

// Mode selects who drives the mood: the user (Manual) or the EEG feed (Auto).
type Mode int

const (
	Manual Mode = iota
	Auto
)

func (m Mode) String() string {
	if m == Auto {
		return "auto"
	}
	return "manual"
}

// ParseMode converts "manual" or "auto" (case-insensitive) to a [Mode].
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return Manual, nil
	case "auto":
		return Auto, nil
	default:
		return Manual, fmt.Errorf("%w: unknown mode %q", shared.ErrInvalidArgument, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// State is everything the presentation layer can observe.
//
// Generation increases on every mood change; remote work tagged with an older
// generation is dropped. GestureSeq plays the same role for skips.
type State struct {
	Authenticated   bool                `json:"authenticated" yaml:"authenticated"`
	Loading         bool                `json:"loading" yaml:"loading"`
	CurrentTrack    *models.Track       `json:"currentTrack,omitempty" yaml:"current_track,omitempty"`
	IsPlaying       bool                `json:"isPlaying" yaml:"is_playing"`
	Queue           []models.Track      `json:"queue" yaml:"queue"`
	CurrentMood     models.Mood         `json:"currentMood" yaml:"current_mood"`
	Mode            Mode                `json:"mode" yaml:"mode"`
	Intensity       int                 `json:"intensity" yaml:"intensity"`
	Sample          *models.BandSample  `json:"sample,omitempty" yaml:"sample,omitempty"`
	Stale           bool                `json:"stale" yaml:"stale"`
	GestureEnabled  bool                `json:"gestureEnabled" yaml:"gesture_enabled"`
	ActiveGesture   models.GestureEvent `json:"activeGesture" yaml:"active_gesture"`
	CurrentPlaylist *models.PlaylistRef `json:"currentPlaylist,omitempty" yaml:"current_playlist,omitempty"`
	LastError       string              `json:"lastError,omitempty" yaml:"last_error,omitempty"`
	Generation      uint64              `json:"generation" yaml:"generation"`
	GestureSeq      uint64              `json:"-" yaml:"-"`

	candidate  models.Mood
	streak     int
	autoChange bool
}

// InitialState is the state before anything has been observed.
func InitialState() State {
	return State{CurrentMood: models.Focus, Mode: Manual, Intensity: 75}
}

// clone copies s so the caller can hand it out without sharing slices or pointers.
func (s State) clone() State {
	c := s
	if s.CurrentTrack != nil {
		t := *s.CurrentTrack
		c.CurrentTrack = &t
	}
	if s.Sample != nil {
		sample := *s.Sample
		if s.Sample.Concentration != nil {
			v := *s.Sample.Concentration
			sample.Concentration = &v
		}
		c.Sample = &sample
	}
	if s.CurrentPlaylist != nil {
		p := *s.CurrentPlaylist
		c.CurrentPlaylist = &p
	}
	if s.Queue != nil {
		c.Queue = append([]models.Track(nil), s.Queue...)
	}
	return c
}

// Config holds the timings and thresholds of the loop.
type Config struct {
	EEGInterval      time.Duration
	PlaybackInterval time.Duration
	SettleDelay      time.Duration
	SkipRefreshDelay time.Duration
	GestureCooldown  time.Duration
	// Stability is the number of consecutive agreeing samples required before an Auto mood flip.
	Stability int
}

// DefaultLoopConfig returns the stock timings.
func DefaultLoopConfig() Config {
	return Config{
		EEGInterval:      2 * time.Second,
		PlaybackInterval: 5 * time.Second,
		SettleDelay:      3 * time.Second,
		SkipRefreshDelay: 2 * time.Second,
		GestureCooldown:  time.Second,
		Stability:        1,
	}
}

// ConfigFrom builds a loop [Config] from the application config, keeping defaults for unset values.
func ConfigFrom(c *shared.Config) Config {
	cfg := DefaultLoopConfig()
	if c == nil {
		return cfg
	}
	if d := c.EEG.PollInterval(); d > 0 {
		cfg.EEGInterval = d
	}
	if d := c.Playback.PollInterval(); d > 0 {
		cfg.PlaybackInterval = d
	}
	if d := c.Playback.SettleDelay(); d > 0 {
		cfg.SettleDelay = d
	}
	if d := c.Playback.SkipRefreshDelay(); d > 0 {
		cfg.SkipRefreshDelay = d
	}
	if d := c.Gestures.Cooldown(); d > 0 {
		cfg.GestureCooldown = d
	}
	if c.EEG.Stability > 0 {
		cfg.Stability = c.EEG.Stability
	}
	return cfg
}

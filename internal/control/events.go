package control

import (
	"fmt"
	"time"

	"github.com/desertthunder/neurotune/internal/models"
)

// Event is an input to [Reduce]: a user action, a timer firing or the outcome of an effect.
type Event interface {
	eventMarker()
}

// SampleReceived carries a fresh EEG reading from the tick.
type SampleReceived struct {
	Sample models.BandSample
}

// SampleFailed reports that the tick could not read the feed.
type SampleFailed struct {
	Err error
}

// MoodSelected is a user mood choice.
type MoodSelected struct {
	Mood models.Mood
}

type ModeToggled struct{}

type ModeSet struct {
	Mode Mode
}

// GestureDetected is emitted by the motion detector.
type GestureDetected struct {
	Gesture models.GestureEvent
}

// GestureCleared ends the active gesture started with sequence number Seq.
type GestureCleared struct {
	Seq uint64
}

type GesturesToggled struct {
	Enabled bool
}

// PlaybackObserved is the result of a track/queue refresh.
type PlaybackObserved struct {
	Playback *models.Playback
	Queue    []models.Track
}

// PlaybackToggled reports a successful play or pause.
type PlaybackToggled struct {
	Playing bool
}

// Skipped reports a successful skip in either direction.
type Skipped struct {
	Next bool
}

// PlaylistStarted reports that the playlist for generation started playing.
type PlaylistStarted struct {
	Generation uint64
	Playlist   models.PlaylistRef
}

// PlaylistFailed reports that no playlist could be started for generation.
type PlaylistFailed struct {
	Generation uint64
	Err        error
}

// RemoteFailed is a provider call failure outside the playlist sequence.
type RemoteFailed struct {
	Op  string
	Err error
}

// AuthChecked reports the stored session status at startup.
type AuthChecked struct {
	Authenticated bool
}

type LoginStarted struct{}

type LoggedIn struct{}

type LoginFailed struct {
	Err error
}

type LoggedOut struct{}

func (SampleReceived) eventMarker()   {}
func (SampleFailed) eventMarker()     {}
func (MoodSelected) eventMarker()     {}
func (ModeToggled) eventMarker()      {}
func (ModeSet) eventMarker()          {}
func (GestureDetected) eventMarker()  {}
func (GestureCleared) eventMarker()   {}
func (GesturesToggled) eventMarker()  {}
func (PlaybackObserved) eventMarker() {}
func (PlaybackToggled) eventMarker()  {}
func (Skipped) eventMarker()          {}
func (PlaylistStarted) eventMarker()  {}
func (PlaylistFailed) eventMarker()   {}
func (RemoteFailed) eventMarker()     {}
func (AuthChecked) eventMarker()      {}
func (LoginStarted) eventMarker()     {}
func (LoggedIn) eventMarker()         {}
func (LoginFailed) eventMarker()      {}
func (LoggedOut) eventMarker()        {}

// Effect is a side effect requested by [Reduce] and executed by the [Loop].
type Effect interface {
	effectMarker()
	String() string
}

// ChangePlaylist searches playlists for Mood and plays the first one, unless
// Generation has been superseded by the time each remote call is made.
type ChangePlaylist struct {
	Mood       models.Mood
	Generation uint64
}

// Skip moves playback one track in Direction (right is next, left is previous).
// It is dropped if gestures were disabled after it was requested.
type Skip struct {
	Direction models.GestureEvent
	Seq       uint64
}

// RefreshAfter refreshes the track and queue after Delay.
type RefreshAfter struct {
	Delay time.Duration
}

// ClearGestureAfter emits [GestureCleared] for Seq after Delay.
type ClearGestureAfter struct {
	Seq   uint64
	Delay time.Duration
}

// StartPolling starts the EEG tick.
type StartPolling struct{}

// StopPolling stops the EEG tick and cancels a tick in progress.
type StopPolling struct{}

func (ChangePlaylist) effectMarker()    {}
func (Skip) effectMarker()              {}
func (RefreshAfter) effectMarker()      {}
func (ClearGestureAfter) effectMarker() {}
func (StartPolling) effectMarker()      {}
func (StopPolling) effectMarker()       {}

func (e ChangePlaylist) String() string {
	return fmt.Sprintf("ChangePlaylist(mood=%s, generation=%d)", e.Mood, e.Generation)
}

func (e Skip) String() string {
	return fmt.Sprintf("Skip(direction=%s, seq=%d)", e.Direction, e.Seq)
}

func (e RefreshAfter) String() string {
	return fmt.Sprintf("RefreshAfter(delay=%s)", e.Delay)
}

func (e ClearGestureAfter) String() string {
	return fmt.Sprintf("ClearGestureAfter(seq=%d, delay=%s)", e.Seq, e.Delay)
}

func (StartPolling) String() string { return "StartPolling()" }
func (StopPolling) String() string  { return "StopPolling()" }

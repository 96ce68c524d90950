package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/neurotune/internal/gesture"
	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/schedule"
	"github.com/desertthunder/neurotune/internal/shared"
)

// Player is the playback surface the loop drives.
type Player interface {
	CurrentPlayback(ctx context.Context) (*models.Playback, error)
	QueueOrUpcoming(ctx context.Context) ([]models.Track, error)
	TogglePlayback(ctx context.Context, play bool) error
	SkipToNext(ctx context.Context) error
	SkipToPrevious(ctx context.Context) error
	PlaylistsForMood(ctx context.Context, m models.Mood) ([]models.PlaylistRef, error)
	PlayPlaylist(ctx context.Context, uri string) error
}

// SampleSource reads one EEG sample.
type SampleSource interface {
	Sample(ctx context.Context) (models.BandSample, error)
}

// Authenticator owns the provider session.
type Authenticator interface {
	Login(ctx context.Context) (*models.Credential, error)
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
}

// Update is delivered to subscribers after every reduction.
type Update struct {
	Seq   uint64
	State State
}

var (
	ErrNotStarted   = errors.New("control loop not started")
	ErrNoPlaylist   = errors.New("no playlist found")
	subscriberQueue = 16
)

type Options struct {
	Config   Config
	Player   Player
	Source   SampleSource
	Auth     Authenticator
	Detector *gesture.Detector
	Logger   *log.Logger
	Initial  *State
}

// Loop owns the control state, schedules the EEG and playback intervals and executes the
// effects emitted by [Reduce]. Dispatch is serialized by a mutex; effects run on tracked goroutines.
type Loop struct {
	cfg      Config
	player   Player
	source   SampleSource
	auth     Authenticator
	detector *gesture.Detector
	logger   *log.Logger

	mu    sync.Mutex
	state State
	seq   uint64

	subsMu     sync.Mutex
	subs       map[int]chan Update
	nextSub    int
	subsClosed bool

	lifeMu  sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	tasks   schedule.Group
	eeg     *schedule.Task
	wg      sync.WaitGroup
}

// New creates a [Loop]. It does nothing until [Loop.Start].
func New(opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultLoopConfig()
	}
	detector := opts.Detector
	if detector == nil {
		detector = gesture.NewDetector(gesture.DefaultThreshold, cfg.GestureCooldown)
	}
	state := InitialState()
	if opts.Initial != nil {
		state = opts.Initial.clone()
	}
	return &Loop{
		cfg:      cfg,
		player:   opts.Player,
		source:   opts.Source,
		auth:     opts.Auth,
		detector: detector,
		logger:   shared.WithLogger(logger, "component", "loop"),
		state:    state,
		subs:     make(map[int]chan Update),
	}
}

// Start checks the stored session and begins the playback poll, plus the EEG tick when in Auto.
func (l *Loop) Start(ctx context.Context) error {
	l.lifeMu.Lock()
	if l.started {
		l.lifeMu.Unlock()
		return fmt.Errorf("control loop already started")
	}
	l.started = true
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.lifeMu.Unlock()

	authed := l.auth != nil && l.auth.IsAuthenticated(l.ctx)
	l.Dispatch(AuthChecked{Authenticated: authed})

	if l.player != nil && l.cfg.PlaybackInterval > 0 {
		l.tasks.Every(l.ctx, l.cfg.PlaybackInterval, l.refresh, false)
	}
	l.syncPolling()
	l.logger.Info("control loop started", "authenticated", authed, "mode", l.Snapshot().Mode)
	return nil
}

// Stop cancels every interval, delayed callback and in-flight effect, then waits for them.
func (l *Loop) Stop() {
	l.lifeMu.Lock()
	if !l.started || l.stopped {
		l.lifeMu.Unlock()
		return
	}
	l.stopped = true
	l.cancel()
	l.eeg = nil
	l.lifeMu.Unlock()

	l.tasks.Close()
	l.wg.Wait()

	l.subsMu.Lock()
	l.subsClosed = true
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
	}
	l.subsMu.Unlock()
	l.logger.Info("control loop stopped")
}

// Snapshot returns a copy of the current state.
func (l *Loop) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}

// Subscribe returns a channel of updates and a function that cancels the subscription.
// Updates are dropped for a subscriber whose buffer is full. After Stop the channel is
// returned closed.
func (l *Loop) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberQueue)

	l.subsMu.Lock()
	if l.subsClosed {
		l.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subsMu.Unlock()

	return ch, func() {
		l.subsMu.Lock()
		defer l.subsMu.Unlock()
		if c, ok := l.subs[id]; ok {
			close(c)
			delete(l.subs, id)
		}
	}
}

// Dispatch reduces ev into the state, notifies subscribers and runs the resulting effects.
func (l *Loop) Dispatch(ev Event) {
	l.mu.Lock()
	res := Reduce(l.state, ev, l.cfg)
	l.state = res.State
	l.seq++
	l.publish(Update{Seq: l.seq, State: l.state.clone()})
	l.mu.Unlock()

	for _, eff := range res.Effects {
		l.runEffect(eff)
	}
}

// publish must be called with l.mu held so subscribers see updates in order.
func (l *Loop) publish(u Update) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (l *Loop) runEffect(eff Effect) {
	l.logger.Debug("effect", "effect", eff.String())

	switch e := eff.(type) {
	case StartPolling, StopPolling:
		l.syncPolling()
	case ChangePlaylist:
		l.goEffect(func(ctx context.Context) { l.changePlaylist(ctx, e) })
	case Skip:
		l.goEffect(func(ctx context.Context) { l.skip(ctx, e) })
	case RefreshAfter:
		if e.Delay <= 0 {
			l.goEffect(l.refresh)
			return
		}
		l.after(e.Delay, l.refresh)
	case ClearGestureAfter:
		l.after(e.Delay, func(context.Context) { l.Dispatch(GestureCleared{Seq: e.Seq}) })
	default:
		l.logger.Warn("unknown effect", "effect", eff.String())
	}
}

// goEffect runs fn on a tracked goroutine unless the loop is not running.
func (l *Loop) goEffect(fn func(context.Context)) {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()
	if !l.started || l.stopped {
		return
	}
	ctx := l.ctx
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn(ctx)
	}()
}

func (l *Loop) after(delay time.Duration, fn func(context.Context)) {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()
	if !l.started || l.stopped {
		return
	}
	l.tasks.After(l.ctx, delay, fn)
}

// syncPolling starts or stops the EEG tick to match the mode in the current state, not the
// effect that triggered it.
func (l *Loop) syncPolling() {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()
	want := l.Snapshot().Mode == Auto && l.started && !l.stopped && l.source != nil
	switch {
	case want && l.eeg == nil:
		l.eeg = l.tasks.Every(l.ctx, l.cfg.EEGInterval, l.tick, true)
		l.logger.Debug("eeg polling started", "interval", l.cfg.EEGInterval)
	case !want && l.eeg != nil:
		l.eeg.Stop()
		l.eeg = nil
		l.logger.Debug("eeg polling stopped")
	}
}

// tick reads one sample. A result that arrives after the tick was canceled is discarded.
func (l *Loop) tick(ctx context.Context) {
	sample, err := l.source.Sample(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		l.logger.Debug("eeg sample unavailable", "error", err)
		l.Dispatch(SampleFailed{Err: err})
		return
	}
	l.Dispatch(SampleReceived{Sample: sample})
}

// current reports whether generation is still the latest mood change and the loop is running.
func (l *Loop) current(ctx context.Context, generation uint64) bool {
	if ctx.Err() != nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Generation == generation
}

func (l *Loop) changePlaylist(ctx context.Context, e ChangePlaylist) {
	if l.player == nil || !l.current(ctx, e.Generation) {
		return
	}

	refs, err := l.player.PlaylistsForMood(ctx, e.Mood)
	if !l.current(ctx, e.Generation) {
		l.logger.Debug("playlist change superseded", "mood", e.Mood, "generation", e.Generation)
		return
	}
	if err != nil {
		l.logger.Error("playlist search failed", "mood", e.Mood, "error", err)
		l.Dispatch(PlaylistFailed{Generation: e.Generation, Err: err})
		return
	}
	if len(refs) == 0 {
		l.logger.Warn("no playlist for mood", "mood", e.Mood)
		l.Dispatch(PlaylistFailed{Generation: e.Generation, Err: fmt.Errorf("%w for %s", ErrNoPlaylist, e.Mood)})
		return
	}

	playlist := refs[0]
	if err := l.player.PlayPlaylist(ctx, playlist.URI()); err != nil {
		l.logger.Error("start playlist failed", "playlist", playlist.ID, "error", err)
		l.Dispatch(PlaylistFailed{Generation: e.Generation, Err: err})
		return
	}
	l.logger.Info("playlist started", "mood", e.Mood, "playlist", playlist.Name)
	l.Dispatch(PlaylistStarted{Generation: e.Generation, Playlist: playlist})
}

func (l *Loop) skip(ctx context.Context, e Skip) {
	l.mu.Lock()
	live := l.state.GestureEnabled && l.state.GestureSeq == e.Seq
	l.mu.Unlock()
	if !live || ctx.Err() != nil || l.player == nil {
		return
	}

	next := e.Direction == models.GestureRight
	var err error
	if next {
		err = l.player.SkipToNext(ctx)
	} else {
		err = l.player.SkipToPrevious(ctx)
	}
	if err != nil {
		l.Dispatch(RemoteFailed{Op: "skip", Err: err})
		return
	}
	l.Dispatch(Skipped{Next: next})
}

// refresh polls the current track, play state and upcoming tracks.
func (l *Loop) refresh(ctx context.Context) {
	if l.player == nil || ctx.Err() != nil || !l.Snapshot().Authenticated {
		return
	}

	playback, err := l.player.CurrentPlayback(ctx)
	if err != nil {
		l.Dispatch(RemoteFailed{Op: "refresh", Err: err})
		return
	}
	queue, err := l.player.QueueOrUpcoming(ctx)
	if err != nil {
		l.Dispatch(RemoteFailed{Op: "queue", Err: err})
		return
	}
	if ctx.Err() != nil {
		return
	}
	l.Dispatch(PlaybackObserved{Playback: playback, Queue: queue})
}

// SelectMood applies m immediately and starts its playlist. In Auto it switches to Manual.
func (l *Loop) SelectMood(m models.Mood) error {
	if !m.Valid() {
		return fmt.Errorf("%w: mood %d", shared.ErrInvalidArgument, int(m))
	}
	l.Dispatch(MoodSelected{Mood: m})
	return nil
}

// ChangeMoodPlaylist is [Loop.SelectMood].
func (l *Loop) ChangeMoodPlaylist(m models.Mood) error {
	return l.SelectMood(m)
}

func (l *Loop) ToggleMode() {
	l.Dispatch(ModeToggled{})
}

func (l *Loop) SetMode(m Mode) {
	l.Dispatch(ModeSet{Mode: m})
}

func (l *Loop) EnableGestures() {
	l.detector.Reset()
	l.Dispatch(GesturesToggled{Enabled: true})
}

func (l *Loop) DisableGestures() {
	l.Dispatch(GesturesToggled{Enabled: false})
}

// Motion feeds an accelerometer sample to the gesture detector. Ignored while gestures are disabled.
func (l *Loop) Motion(s models.MotionSample) {
	if !l.Snapshot().GestureEnabled {
		return
	}
	if g, ok := l.detector.Feed(s); ok {
		l.logger.Debug("gesture detected", "gesture", g)
		l.Dispatch(GestureDetected{Gesture: g})
	}
}

// Login runs the interactive authorization flow.
func (l *Loop) Login(ctx context.Context) error {
	if l.auth == nil {
		return ErrNotStarted
	}
	l.Dispatch(LoginStarted{})
	if _, err := l.auth.Login(ctx); err != nil {
		l.Dispatch(LoginFailed{Err: err})
		return err
	}
	l.Dispatch(LoggedIn{})
	return nil
}

// Logout ends the session and clears the playback view.
func (l *Loop) Logout(ctx context.Context) error {
	if l.auth != nil {
		if err := l.auth.Logout(ctx); err != nil {
			return err
		}
	}
	l.Dispatch(LoggedOut{})
	return nil
}

// TogglePlayback pauses when playing and resumes otherwise.
func (l *Loop) TogglePlayback(ctx context.Context) error {
	if l.player == nil {
		return ErrNotStarted
	}
	play := !l.Snapshot().IsPlaying
	if err := l.player.TogglePlayback(ctx, play); err != nil {
		l.Dispatch(RemoteFailed{Op: "toggle playback", Err: err})
		return err
	}
	l.Dispatch(PlaybackToggled{Playing: play})
	return nil
}

func (l *Loop) SkipToNext(ctx context.Context) error {
	return l.skipNow(ctx, true)
}

func (l *Loop) SkipToPrevious(ctx context.Context) error {
	return l.skipNow(ctx, false)
}

func (l *Loop) skipNow(ctx context.Context, next bool) error {
	if l.player == nil {
		return ErrNotStarted
	}
	var err error
	if next {
		err = l.player.SkipToNext(ctx)
	} else {
		err = l.player.SkipToPrevious(ctx)
	}
	if err != nil {
		l.Dispatch(RemoteFailed{Op: "skip", Err: err})
		return err
	}
	l.Dispatch(Skipped{Next: next})
	return nil
}

// RefreshTrack refreshes the track and queue now.
func (l *Loop) RefreshTrack(ctx context.Context) {
	l.refresh(ctx)
}

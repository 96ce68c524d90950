package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/formatter"
	"github.com/desertthunder/neurotune/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DashboardView ViewState = iota
	QueueView
)

// queuePreview is the number of upcoming tracks shown on the dashboard.
const queuePreview = 5

// Controller is the part of [control.Loop] the dashboard drives.
type Controller interface {
	Snapshot() control.State
	Subscribe() (<-chan control.Update, func())
	SelectMood(m models.Mood) error
	ToggleMode()
	EnableGestures()
	DisableGestures()
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	TogglePlayback(ctx context.Context) error
	SkipToNext(ctx context.Context) error
	SkipToPrevious(ctx context.Context) error
	RefreshTrack(ctx context.Context)
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	ctl         Controller
	updates     <-chan control.Update
	unsubscribe func()
	view        ViewState
	state       control.State
	seq         uint64
	width       int
	height      int
	queueList   list.Model
	status      string
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a dashboard subscribed to ctl. Call [Model.Close] when the program exits.
func NewModel(ctx context.Context, ctl Controller) *Model {
	updates, unsubscribe := ctl.Subscribe()
	queue := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	queue.Title = "Up Next"
	return &Model{
		ctx:         ctx,
		ctl:         ctl,
		updates:     updates,
		unsubscribe: unsubscribe,
		view:        DashboardView,
		state:       ctl.Snapshot(),
		queueList:   queue,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Close drops the loop subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Init starts listening for loop updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle("NeuroTune"), m.waitForUpdate())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.queueList.SetSize(max(msg.Width-4, 0), max(msg.Height-6, 0))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueueView:
			return m.handleQueueKeys(msg)
		default:
			return m.handleDashboardKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgStateUpdated:
			u := msg.data.(control.Update)
			if u.Seq >= m.seq {
				m.seq = u.Seq
				m.setState(u.State)
			}
			return m, m.waitForUpdate()
		case MsgActionDone:
			res := msg.data.(actionResult)
			m.err = res.err
			if res.err == nil {
				m.status = res.name
			} else {
				m.status = ""
			}
			return m, nil
		case MsgUpdatesClosed:
			return m, tea.Quit
		}
	}

	if m.view == QueueView {
		var cmd tea.Cmd
		m.queueList, cmd = m.queueList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setState(s control.State) {
	m.state = s
	m.queueList.SetItems(trackItems(s.Queue))
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case QueueView:
		return m.renderQueue()
	default:
		return m.renderDashboard()
	}
}

func (m *Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.quit):
		return m, tea.Quit
	case key.Matches(msg, k.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, k.queue):
		m.view = QueueView
		return m, nil
	case key.Matches(msg, k.focus):
		return m, m.selectMood(models.Focus)
	case key.Matches(msg, k.energy):
		return m, m.selectMood(models.Energy)
	case key.Matches(msg, k.chill):
		return m, m.selectMood(models.Chill)
	case key.Matches(msg, k.mode):
		return m, m.run("mode toggled", func(context.Context) error {
			m.ctl.ToggleMode()
			return nil
		})
	case key.Matches(msg, k.gestures):
		enabled := m.state.GestureEnabled
		return m, m.run("gestures toggled", func(context.Context) error {
			if enabled {
				m.ctl.DisableGestures()
			} else {
				m.ctl.EnableGestures()
			}
			return nil
		})
	case key.Matches(msg, k.play):
		return m, m.run("playback toggled", m.ctl.TogglePlayback)
	case key.Matches(msg, k.next):
		return m, m.run("skipped forward", m.ctl.SkipToNext)
	case key.Matches(msg, k.prev):
		return m, m.run("skipped back", m.ctl.SkipToPrevious)
	case key.Matches(msg, k.refresh):
		return m, m.run("refreshed", func(ctx context.Context) error {
			m.ctl.RefreshTrack(ctx)
			return nil
		})
	case key.Matches(msg, k.login):
		m.status = "waiting for Spotify authorization in the browser..."
		return m, m.run("logged in", m.ctl.Login)
	case key.Matches(msg, k.logout):
		return m, m.run("logged out", m.ctl.Logout)
	}
	return m, nil
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.queue):
		if m.queueList.FilterState() == list.Unfiltered {
			m.view = DashboardView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

func (m *Model) selectMood(mood models.Mood) tea.Cmd {
	return m.run(fmt.Sprintf("mood set to %s", mood), func(context.Context) error {
		return m.ctl.SelectMood(mood)
	})
}

// run executes fn off the update loop and reports the outcome as [MsgActionDone].
func (m *Model) run(name string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg(name, fn(ctx))
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return updatesClosedMsg()
		}
		return stateUpdatedMsg(u)
	}
}

func (m *Model) renderDashboard() string {
	s := m.state
	var b strings.Builder

	b.WriteString(styles.title.Render("NeuroTune"))
	b.WriteString("\n")

	session := styles.warn.Render("not connected (press l to log in)")
	if s.Authenticated {
		session = styles.ok.Render("connected to Spotify")
	}
	fmt.Fprintf(&b, "Session: %s\n", session)

	moods := make([]string, 0, len(models.Moods()))
	for _, md := range models.Moods() {
		moods = append(moods, moodStyle(md, md == s.CurrentMood).Render(md.String()))
	}
	mode := s.Mode.String()
	if s.Mode == control.Auto {
		mode = styles.ok.Render(mode)
	}
	fmt.Fprintf(&b, "Mood: %s   Mode: %s\n", strings.Join(moods, "  "), mode)
	fmt.Fprintf(&b, "Intensity: %s %d%%\n", bar(s.Intensity, 20), s.Intensity)
	b.WriteString(m.renderBands())
	b.WriteString("\n")

	b.WriteString(styles.panel.Render(m.renderPlayback()))
	b.WriteString("\n")

	gestures := styles.help.Render("off")
	if s.GestureEnabled {
		gestures = styles.ok.Render("on")
		if s.ActiveGesture != models.GestureNone {
			gestures += " " + styles.warn.Render("["+s.ActiveGesture.String()+"]")
		}
	}
	fmt.Fprintf(&b, "Gestures: %s\n", gestures)

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case s.LastError != "":
		b.WriteString(styles.err.Render("Last error: " + s.LastError))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(styles.help.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderBands() string {
	s := m.state
	if s.Sample == nil {
		if s.Mode == control.Auto {
			return styles.help.Render("waiting for EEG samples...") + "\n"
		}
		return ""
	}
	bands := fmt.Sprintf("δ %.2f  θ %.2f  α %.2f  β %.2f  γ %.2f",
		s.Sample.Delta, s.Sample.Theta, s.Sample.Alpha, s.Sample.Beta, s.Sample.Gamma)
	if s.Stale {
		bands += "  " + styles.warn.Render("(feed unavailable)")
	}
	return bands + "\n"
}

func (m *Model) renderPlayback() string {
	s := m.state
	var lines []string
	if s.CurrentPlaylist != nil {
		lines = append(lines, "Playlist: "+s.CurrentPlaylist.Name)
	}
	switch {
	case s.Loading:
		lines = append(lines, styles.help.Render("finding a "+s.CurrentMood.String()+" playlist..."))
	case s.CurrentTrack == nil:
		lines = append(lines, styles.help.Render("Nothing playing"))
	default:
		icon := "⏸"
		if s.IsPlaying {
			icon = "▶"
		}
		t := s.CurrentTrack
		lines = append(lines, fmt.Sprintf("%s %s - %s [%s]", icon, t.Artist, t.Name, formatter.FormatDuration(t.DurationMs)))
		if t.Album != "" {
			lines = append(lines, styles.help.Render(t.Album))
		}
	}

	if len(s.Queue) > 0 {
		lines = append(lines, "", "Up next:")
		for i, t := range s.Queue {
			if i == queuePreview {
				lines = append(lines, styles.help.Render(fmt.Sprintf("  ... %d more (u)", len(s.Queue)-queuePreview)))
				break
			}
			lines = append(lines, fmt.Sprintf("  %d. %s - %s", i+1, t.Artist, t.Name))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderQueue() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	if len(m.state.Queue) == 0 {
		return fmt.Sprintf("%s\n%s\n\n%s", styles.title.Render("Up Next"), styles.help.Render("nothing queued"), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.queueList.View(), helpView)
}

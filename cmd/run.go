package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/gesture"
	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/server"
	"github.com/desertthunder/neurotune/internal/shared"
	"github.com/desertthunder/neurotune/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// tuiLogPath receives logs while the dashboard owns the terminal.
const tuiLogPath = "./tmp/neurotune-tui.log"

// newLoop builds a control loop from the config and the shared loop flags.
func (r *Runner) newLoop(cmd *cli.Command) (*control.Loop, error) {
	if err := r.connect(); err != nil {
		return nil, err
	}

	initial := control.InitialState()
	m, err := models.ParseMood(cmd.String("mood"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	initial.CurrentMood = m

	auto := r.config.EEG.AutoStart
	if cmd.IsSet("auto") {
		auto = cmd.Bool("auto")
	}
	if auto {
		initial.Mode = control.Auto
	}
	initial.GestureEnabled = r.config.Gestures.Enabled
	if cmd.IsSet("gestures") {
		initial.GestureEnabled = cmd.Bool("gestures")
	}

	cfg := control.ConfigFrom(r.config)
	return control.New(control.Options{
		Config:   cfg,
		Player:   r.player,
		Source:   r.sampleSource(),
		Auth:     r.auth,
		Detector: gesture.NewDetector(r.config.Gestures.Threshold, cfg.GestureCooldown),
		Logger:   r.logger,
		Initial:  &initial,
	}), nil
}

func (r *Runner) apiAddr(cmd *cli.Command) string {
	if addr := cmd.String("addr"); addr != "" {
		return addr
	}
	return r.config.API.Addr()
}

// Run starts the control loop and serves the API until interrupted.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop, err := r.newLoop(cmd)
	if err != nil {
		return err
	}
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer loop.Stop()

	updates, unsubscribe := loop.Subscribe()
	defer unsubscribe()

	srv := server.New(r.apiAddr(cmd), loop, r.logger)
	r.logger.Info("neurotune running", "api", r.apiAddr(cmd), "eeg", r.config.EEG.URL)
	return ignoreCanceled(srv.Run(ctx, updates))
}

// TUI launches the terminal dashboard over a running control loop.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.config.Logging.File == "" {
		fileLogger, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	loop, err := r.newLoop(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer loop.Stop()

	g, ctx := errgroup.WithContext(ctx)
	if cmd.Bool("serve") {
		updates, unsubscribe := loop.Subscribe()
		defer unsubscribe()
		srv := server.New(r.apiAddr(cmd), loop, r.logger)
		g.Go(func() error { return srv.Run(ctx, updates) })
	}

	model := ui.NewModel(ctx, loop)
	defer model.Close()
	g.Go(func() error {
		defer cancel()
		if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	})

	return ignoreCanceled(g.Wait())
}

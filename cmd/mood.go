package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/formatter"
	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/shared"
	"github.com/urfave/cli/v3"
)

// MoodClassify reads one EEG sample and prints the mood scores. When the feed is
// unavailable the fallback sample is scored and marked stale.
func (r *Runner) MoodClassify(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("simulate") {
		return formatter.Scores(r.output, r.format, formatter.Classify(models.SimulatedSample(), false))
	}

	sample, err := r.sampleSource().Sample(ctx)
	stale := false
	if err != nil {
		r.logger.Warn("EEG feed unavailable, using fallback sample", "url", r.config.EEG.URL, "error", err)
		sample, stale = models.SimulatedSample(), true
	}
	return formatter.Scores(r.output, r.format, formatter.Classify(sample, stale))
}

// MoodPlay searches playlists for the mood argument and starts the first one.
func (r *Runner) MoodPlay(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("mood")
	if arg == "" {
		return fmt.Errorf("%w: mood (focus, energy or chill)", shared.ErrMissingArgument)
	}
	m, err := models.ParseMood(arg)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if err := r.requireSession(ctx, "mood play"); err != nil {
		return err
	}

	refs, err := r.player.PlaylistsForMood(ctx, m)
	if err != nil {
		return err
	}
	if cmd.Bool("list") {
		return formatter.Playlists(r.output, r.format, m, refs)
	}
	if len(refs) == 0 {
		return fmt.Errorf("%w for %s", control.ErrNoPlaylist, m)
	}

	pick := refs[0]
	r.logger.Info("starting playlist", "mood", m, "playlist", pick.Name)
	if err := r.player.PlayPlaylist(ctx, pick.URI()); err != nil {
		return err
	}
	return r.writePlain("▶ %s (%s)\n", pick.Name, m)
}

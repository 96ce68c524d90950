package main

import (
	"context"

	"github.com/desertthunder/neurotune/internal/formatter"
	"github.com/urfave/cli/v3"
)

// PlaybackNow prints the current track.
func (r *Runner) PlaybackNow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx, "playback now"); err != nil {
		return err
	}
	pb, err := r.player.CurrentPlayback(ctx)
	if err != nil {
		return err
	}
	if pb == nil {
		return formatter.Track(r.output, r.format, nil, false)
	}
	return formatter.Track(r.output, r.format, pb.Item, pb.IsPlaying)
}

// PlaybackToggle pauses when playing and resumes otherwise.
func (r *Runner) PlaybackToggle(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx, "playback toggle"); err != nil {
		return err
	}
	pb, err := r.player.CurrentPlayback(ctx)
	if err != nil {
		return err
	}
	play := pb == nil || !pb.IsPlaying
	if err := r.player.TogglePlayback(ctx, play); err != nil {
		return err
	}
	if play {
		return r.writePlain("▶ Resumed\n")
	}
	return r.writePlain("⏸ Paused\n")
}

// PlaybackNext skips forward.
func (r *Runner) PlaybackNext(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx, "playback next"); err != nil {
		return err
	}
	if err := r.player.SkipToNext(ctx); err != nil {
		return err
	}
	return r.writePlain("⏭ Skipped\n")
}

// PlaybackPrevious skips back.
func (r *Runner) PlaybackPrevious(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx, "playback previous"); err != nil {
		return err
	}
	if err := r.player.SkipToPrevious(ctx); err != nil {
		return err
	}
	return r.writePlain("⏮ Skipped back\n")
}

// PlaybackQueue prints the queue, or the upcoming playlist tracks when the queue is empty.
func (r *Runner) PlaybackQueue(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx, "playback queue"); err != nil {
		return err
	}
	tracks, err := r.player.QueueOrUpcoming(ctx)
	if err != nil {
		return err
	}
	return formatter.Tracks(r.output, r.format, "Up next:", tracks)
}

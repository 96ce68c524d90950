package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/neurotune/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	if err := runner.App().Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired):
			logger.Error("not logged in to Spotify, run `neurotune auth login`", "error", err)
			os.Exit(1)
		case errors.Is(err, shared.ErrMissingCredentials):
			logger.Error("spotify client id missing, run `neurotune setup config` and edit the file", "error", err)
			os.Exit(1)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}

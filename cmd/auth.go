package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/neurotune/internal/formatter"
	"github.com/desertthunder/neurotune/internal/services"
	"github.com/desertthunder/neurotune/internal/shared"
	"github.com/urfave/cli/v3"
)

// userChecker is implemented by players that can verify the session against the API.
type userChecker interface {
	Available(ctx context.Context) bool
	CurrentUser(ctx context.Context) (*services.SpotifyUser, error)
}

// AuthLogin runs the browser authorization flow and stores the tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	r.logger.Info("starting Spotify authorization")
	cred, err := r.auth.Login(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("authentication successful", "expires_at", cred.ExpiresAt)
	return r.writePlain("✓ Logged in to Spotify (token valid until %s)\n", cred.ExpiresAt.Local().Format("15:04"))
}

// AuthLogout clears the stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}
	if err := r.auth.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

type authStatus struct {
	Authenticated bool   `json:"authenticated" yaml:"authenticated"`
	User          string `json:"user,omitempty" yaml:"user,omitempty"`
	Product       string `json:"product,omitempty" yaml:"product,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

// AuthStatus reports whether a session is stored and, if so, who it belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	status := authStatus{Authenticated: r.auth.IsAuthenticated(ctx)}
	if checker, ok := r.player.(userChecker); ok && status.Authenticated {
		if !checker.Available(ctx) {
			status.Error = shared.ErrServiceUnavailable.Error()
		} else if user, err := checker.CurrentUser(ctx); err != nil {
			r.logger.Warn("session check failed", "error", err)
			status.Error = err.Error()
		} else if user != nil {
			status.User = user.DisplayName
			if status.User == "" {
				status.User = user.ID
			}
			status.Product = user.Product
		}
	}

	switch r.format {
	case formatter.JSON, formatter.YAML:
		return formatter.Value(r.output, r.format, status)
	}

	if !status.Authenticated {
		return r.writePlain("Authentication: ✗ Not logged in\n")
	}
	r.writePlain("Authentication: ✓ Logged in\n")
	if status.User != "" {
		r.writePlain("User: %s (%s)\n", status.User, status.Product)
	}
	if status.Error != "" {
		return fmt.Errorf("%w: session check failed: %s", shared.ErrServiceUnavailable, status.Error)
	}
	return nil
}

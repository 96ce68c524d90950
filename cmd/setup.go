package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/neurotune/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if _, err := os.Stat(path); err == nil {
		if !cmd.Bool("force") {
			return fmt.Errorf("%w: config file already exists at %s (use --force)", shared.ErrInvalidArgument, path)
		}
		if err := shared.SaveConfig(path, shared.DefaultConfig()); err != nil {
			return err
		}
	} else if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlain("Next steps:\n")
	r.writePlain("1. Set credentials.spotify.client_id (or SPOTIFY_CLIENT_ID in .env)\n")
	r.writePlain("2. Register %s as a redirect URI for your Spotify app\n", shared.DefaultConfig().Credentials.Spotify.RedirectURI)
	return r.writePlain("3. Run 'neurotune auth login'\n")
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	if _, err := r.database(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}

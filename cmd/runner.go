package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/neurotune/internal/auth"
	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/formatter"
	"github.com/desertthunder/neurotune/internal/repositories"
	"github.com/desertthunder/neurotune/internal/server"
	"github.com/desertthunder/neurotune/internal/services"
	"github.com/desertthunder/neurotune/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The Spotify session, player and EEG source are built from the config on first use
// unless injected through [RunnerOpts].
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
	format     formatter.Format

	player control.Player
	auth   control.Authenticator
	source control.SampleSource
	db     *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
	Player     control.Player
	Auth       control.Authenticator
	Source     control.SampleSource
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		format:     formatter.Text,
		player:     opts.Player,
		auth:       opts.Auth,
		source:     opts.Source,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playbackCommand, moodCommand, runCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config file (when present), applies environment overrides
// and resolves the output format and log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}
	shared.ApplyEnv(r.config)

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return ctx, err
	}
	r.format = format

	if path := r.config.Logging.File; path != "" {
		fileLogger, err := shared.NewFileLogger(path)
		if err != nil {
			return ctx, err
		}
		r.logger = fileLogger
	}

	level := r.config.Logging.Level
	if v := cmd.String("log-level"); v != "" {
		level = v
	}
	if level != "" {
		ll, err := shared.ParseLevel(level)
		if err != nil {
			return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		shared.SetLogLevel(r.logger, ll)
	}
	return ctx, nil
}

// SetLogger replaces the logger used by commands built after the call.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

// tokenStore picks the credential backend named by storage.driver.
func (r *Runner) tokenStore() (auth.TokenStore, error) {
	switch r.config.Storage.Driver {
	case "memory":
		return auth.NewMemoryStore(), nil
	case "file":
		return auth.NewFileStore(r.config.Storage.Path, shared.StorageKey), nil
	case "sqlite", "":
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		return repositories.NewCredentialRepository(db, shared.StorageKey), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", shared.ErrInvalidConfig, r.config.Storage.Driver)
	}
}

// connect builds the Spotify session and player unless both were injected.
func (r *Runner) connect() error {
	if r.player != nil && r.auth != nil {
		return nil
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	store, err := r.tokenStore()
	if err != nil {
		return err
	}
	authorizer, err := server.NewLoopbackAuthorizer(r.config.Credentials.Spotify.RedirectURI, r.output, r.logger)
	if err != nil {
		return err
	}
	session := auth.NewController(auth.Options{
		Config:     auth.NewOAuthConfig(r.config.Credentials.Spotify, r.config.Provider),
		Store:      store,
		Authorizer: authorizer,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})

	p := r.config.Provider
	client := services.NewClient(services.ClientOptions{
		BaseURL:     p.BaseURL,
		HTTPClient:  &http.Client{Timeout: p.Timeout()},
		Tokens:      session,
		Limiter:     services.NewLimiter(p.RequestsPerSecond, p.Burst),
		MaxAttempts: p.MaxAttempts,
		BaseDelay:   p.BaseDelay(),
		Logger:      r.logger,
	})

	if r.auth == nil {
		r.auth = session
	}
	if r.player == nil {
		r.player = services.NewPlayer(client, r.logger)
	}
	return nil
}

// requireSession connects and fails with an unauthenticated error when no session is stored.
func (r *Runner) requireSession(ctx context.Context, op string) error {
	if err := r.connect(); err != nil {
		return err
	}
	if !r.auth.IsAuthenticated(ctx) {
		return shared.NewError(shared.KindUnauthenticated, op, nil)
	}
	return nil
}

func (r *Runner) sampleSource() control.SampleSource {
	if r.source == nil {
		r.source = services.NewBrainwaveClient(r.config.EEG.URL, r.config.EEG.Timeout(), r.logger)
	}
	return r.source
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// ignoreCanceled treats a user interrupt as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// StorageKey is the fixed key the credential record is persisted under.
const StorageKey = "@neurotune_spotify_tokens"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Provider    ProviderConfig    `toml:"provider"`
	EEG         EEGConfig         `toml:"eeg"`
	Playback    PlaybackConfig    `toml:"playback"`
	Gestures    GesturesConfig    `toml:"gestures"`
	Storage     StorageConfig     `toml:"storage"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	API         ServerConfig      `toml:"api"`
	Logging     LoggingConfig     `toml:"logging"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// ClientSecret may be empty: the PKCE flow works for public clients.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

// ProviderConfig controls the streaming provider client.
type ProviderConfig struct {
	BaseURL           string  `toml:"base_url"`
	AuthURL           string  `toml:"auth_url"`
	TokenURL          string  `toml:"token_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	MaxAttempts       int     `toml:"max_attempts"`
	BaseDelayMs       int     `toml:"base_delay_ms"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// EEGConfig controls the brainwave feed and auto mode.
type EEGConfig struct {
	URL            string `toml:"url"`
	PollIntervalMs int    `toml:"poll_interval_ms"`
	TimeoutMs      int    `toml:"timeout_ms"`
	Stability      int    `toml:"stability"`
	AutoStart      bool   `toml:"auto_start"`
}

// PlaybackConfig controls playback polling and settle delays.
type PlaybackConfig struct {
	PollIntervalMs     int `toml:"poll_interval_ms"`
	SettleDelayMs      int `toml:"settle_delay_ms"`
	SkipRefreshDelayMs int `toml:"skip_refresh_delay_ms"`
}

// GesturesConfig controls motion gesture detection.
type GesturesConfig struct {
	Enabled    bool    `toml:"enabled"`
	Threshold  float64 `toml:"threshold"`
	CooldownMs int     `toml:"cooldown_ms"`
}

// StorageConfig selects where the credential record lives: sqlite, file or memory.
type StorageConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig controls log level and destination.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (e EEGConfig) PollInterval() time.Duration { return ms(e.PollIntervalMs) }
func (e EEGConfig) Timeout() time.Duration      { return ms(e.TimeoutMs) }

func (p PlaybackConfig) PollInterval() time.Duration     { return ms(p.PollIntervalMs) }
func (p PlaybackConfig) SettleDelay() time.Duration      { return ms(p.SettleDelayMs) }
func (p PlaybackConfig) SkipRefreshDelay() time.Duration { return ms(p.SkipRefreshDelayMs) }

func (g GesturesConfig) Cooldown() time.Duration { return ms(g.CooldownMs) }

func (p ProviderConfig) BaseDelay() time.Duration { return ms(p.BaseDelayMs) }
func (p ProviderConfig) Timeout() time.Duration   { return time.Duration(p.TimeoutSeconds) * time.Second }

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path, creating parent directories.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports configuration that would make the application unusable.
func (c *Config) Validate() error {
	id := c.Credentials.Spotify.ClientID
	if id == "" || id == "your_spotify_client_id" {
		return fmt.Errorf("%w: spotify client_id", ErrMissingCredentials)
	}
	if c.Credentials.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify redirect_uri is required", ErrInvalidConfig)
	}

	switch c.Storage.Driver {
	case "sqlite", "file", "memory":
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.EEG.PollIntervalMs <= 0 || c.Playback.PollIntervalMs <= 0 {
		return fmt.Errorf("%w: poll intervals must be positive", ErrInvalidConfig)
	}
	if c.EEG.Stability < 1 {
		return fmt.Errorf("%w: eeg stability must be at least 1", ErrInvalidConfig)
	}
	if c.Provider.MaxAttempts < 1 {
		return fmt.Errorf("%w: provider max_attempts must be at least 1", ErrInvalidConfig)
	}
	return nil
}

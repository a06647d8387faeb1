package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify     SpotifyConfig     `toml:"spotify"`
	Credentials CredentialsConfig `toml:"credentials"`
	Session     SessionConfig     `toml:"session"`
	Playback    PlaybackConfig    `toml:"playback"`
	API         APIConfig         `toml:"api"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// SpotifyConfig contains the public client registration and endpoints.
//
// PKCE clients carry no secret, so none is configured here.
type SpotifyConfig struct {
	ClientID    string   `toml:"client_id"`
	RedirectURI string   `toml:"redirect_uri"`
	AuthURL     string   `toml:"auth_url"`
	TokenURL    string   `toml:"token_url"`
	APIURL      string   `toml:"api_url"`
	Scopes      []string `toml:"scopes"`
}

// CredentialsConfig selects where the refresh token lives.
type CredentialsConfig struct {
	Backend string      `toml:"backend"`
	Service string      `toml:"service"`
	Key     string      `toml:"key"`
	Vault   VaultConfig `toml:"vault"`
}

// VaultConfig points the vault backend at a KV v2 mount.
type VaultConfig struct {
	Address  string `toml:"address"`
	Mount    string `toml:"mount"`
	Path     string `toml:"path"`
	TokenEnv string `toml:"token_env"`
}

// SessionConfig tunes token refresh.
type SessionConfig struct {
	RefreshMargin  time.Duration `toml:"refresh_margin"`
	RefreshTimeout time.Duration `toml:"refresh_timeout"`
}

// PlaybackConfig tunes the playback synchronization loop.
type PlaybackConfig struct {
	PollInterval    time.Duration `toml:"poll_interval"`
	ReconcileDelay  time.Duration `toml:"reconcile_delay"`
	RollbackOnError bool          `toml:"rollback_on_error"`
}

// APIConfig contains Web API client limits.
type APIConfig struct {
	Timeout           time.Duration `toml:"timeout"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	BreakerFailures   int           `toml:"breaker_failures"`
	BreakerTimeout    time.Duration `toml:"breaker_timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the loopback callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Addr returns the host:port the callback server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to the embedded defaults.
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

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports the first setting that would prevent the client from working.
func (c *Config) Validate() error {
	switch {
	case c.Spotify.ClientID == "" || c.Spotify.ClientID == "your_spotify_client_id":
		return fmt.Errorf("%w: spotify.client_id must be set", ErrMissingCredentials)
	case c.Spotify.RedirectURI == "":
		return fmt.Errorf("%w: spotify.redirect_uri must be set", ErrInvalidConfig)
	case c.Spotify.TokenURL == "" || c.Spotify.AuthURL == "":
		return fmt.Errorf("%w: spotify auth_url and token_url must be set", ErrInvalidConfig)
	case c.Credentials.Key == "":
		return fmt.Errorf("%w: credentials.key must be set", ErrInvalidConfig)
	case c.Playback.PollInterval <= 0:
		return fmt.Errorf("%w: playback.poll_interval must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Credentials.Backend) {
	case "keyring", "vault", "memory":
	default:
		return fmt.Errorf("%w: unknown credentials backend %q", ErrInvalidConfig, c.Credentials.Backend)
	}
	return nil
}

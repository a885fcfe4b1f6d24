package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultServerURL      = "ws://127.0.0.1:8765/ws"
	DefaultTokenEnv       = "TETHER_TOKEN"
	DefaultBackoffBaseMS  = 500
	DefaultBackoffCapMS   = 30000
	DefaultTimeoutSeconds = 10
	DefaultEventCapacity  = 200
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			URL:      DefaultServerURL,
			TokenEnv: DefaultTokenEnv,
		},
		Backoff: BackoffConfig{
			BaseMS: DefaultBackoffBaseMS,
			CapMS:  DefaultBackoffCapMS,
		},
		Command: CommandConfig{TimeoutSeconds: DefaultTimeoutSeconds},
		Events:  EventsConfig{Capacity: DefaultEventCapacity},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Load reads and parses .tether/config.yaml from the given base path.
// A missing file yields the defaults. Missing fields take their default
// values before validation.
func Load(basePath string) (*Config, error) {
	configPath := filepath.Join(basePath, ".tether", "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all config values are usable.
func Validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.Server.URL, "ws://") &&
		!strings.HasPrefix(cfg.Server.URL, "wss://") {
		return ValidationError{Field: "server.url", Message: "must be a ws:// or wss:// URL"}
	}
	if cfg.Backoff.BaseMS <= 0 {
		return ValidationError{Field: "backoff.base_ms", Message: "must be positive"}
	}
	if cfg.Backoff.CapMS < cfg.Backoff.BaseMS {
		return ValidationError{Field: "backoff.cap_ms", Message: "must be at least backoff.base_ms"}
	}
	if cfg.Command.TimeoutSeconds <= 0 {
		return ValidationError{Field: "command.timeout_seconds", Message: "must be positive"}
	}
	if cfg.Events.Capacity <= 0 {
		return ValidationError{Field: "events.capacity", Message: "must be positive"}
	}
	return nil
}

// Token resolves the bearer credential from the configured environment
// variable. Empty when unset; the backend decides whether anonymous
// connections are allowed.
func (c *Config) Token() string {
	env := c.Server.TokenEnv
	if env == "" {
		env = DefaultTokenEnv
	}
	return os.Getenv(env)
}

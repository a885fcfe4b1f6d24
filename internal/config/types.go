// Package config loads and validates the .tether/config.yaml file.
package config

import "time"

// ServerConfig locates the backend agent and its credential.
type ServerConfig struct {
	// URL is the websocket endpoint, e.g. "ws://127.0.0.1:8765/ws".
	URL string `yaml:"url"`
	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`
}

// BackoffConfig bounds the reconnect delay sequence.
type BackoffConfig struct {
	BaseMS int `yaml:"base_ms"`
	CapMS  int `yaml:"cap_ms"`
}

// Base returns the backoff base as a duration.
func (b BackoffConfig) Base() time.Duration {
	return time.Duration(b.BaseMS) * time.Millisecond
}

// Cap returns the backoff cap as a duration.
func (b BackoffConfig) Cap() time.Duration {
	return time.Duration(b.CapMS) * time.Millisecond
}

// CommandConfig bounds correlated commands.
type CommandConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the command timeout as a duration.
func (c CommandConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EventsConfig sizes the bounded event log.
type EventsConfig struct {
	Capacity int `yaml:"capacity"`
}

// Config represents the .tether/config.yaml file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backoff BackoffConfig `yaml:"backoff"`
	Command CommandConfig `yaml:"command"`
	Events  EventsConfig  `yaml:"events"`
}

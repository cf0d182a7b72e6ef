// Package config provides configuration loading for dilagent.
//
// Configuration is resolved from, in order of precedence: environment
// variables (DILAGENT_* prefix), the project config (.dilagent.yaml in the
// working root), the global config (~/.dilagent/config.yaml), and built-in
// defaults.
package config

import (
	"time"

	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// Config is the root configuration for dilagent.
type Config struct {
	// Server configures the coordination HTTP endpoint.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// State configures run-state and timeline persistence.
	State StateConfig `mapstructure:"state" yaml:"state"`
}

// ServerConfig configures the loopback coordination server.
type ServerConfig struct {
	// Port is the loopback port to bind. 0 picks a free port.
	Port int `mapstructure:"port" yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown on exit.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StateConfig configures persistence policy.
type StateConfig struct {
	// AutoPersist rewrites state.json and timeline.json after every mutation.
	AutoPersist bool `mapstructure:"auto_persist" yaml:"auto_persist"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            0,
			ShutdownTimeout: 10 * time.Second,
		},
		State: StateConfig{
			AutoPersist: true,
		},
	}
}

// Validate checks configuration values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return dilerrors.ErrConfigNil
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return dilerrors.Wrapf(dilerrors.ErrConfigInvalidServer, "port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return dilerrors.Wrap(dilerrors.ErrConfigInvalidServer, "shutdown_timeout must be positive")
	}
	return nil
}

package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/dilagent/internal/constants"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// newViperInstance creates a Viper instance with standard dilagent settings:
// environment prefix (DILAGENT_), key replacer, and built-in defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DILAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers the built-in defaults.
func setDefaults(v *viper.Viper) {
	defaults := Default()
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("state.auto_persist", defaults.State.AutoPersist)
}

// viperDecoderOption configures duration parsing for Unmarshal.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// isConfigNotFoundError returns true if the error is a viper config-file-not-found
// error, which is expected in many scenarios and never fatal.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var notFound viper.ConfigFileNotFoundError
	return stderrors.As(err, &notFound)
}

// Load reads configuration for the given working root with proper precedence:
// environment variables, project config, global config, then defaults.
// Missing config files are not errors.
func Load(ctx context.Context, workingRoot string) (*Config, error) {
	v := newViperInstance()

	// Global config first (lower precedence)
	if err := mergeConfigFile(v, globalConfigPath()); err != nil {
		return nil, err
	}

	// Project config merges over global
	if err := mergeConfigFile(v, filepath.Join(workingRoot, constants.ProjectConfigName)); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, dilerrors.Wrap(err, "failed to unmarshal config")
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Int("server.port", cfg.Server.Port).
		Bool("state.auto_persist", cfg.State.AutoPersist).
		Msg("configuration loaded")

	if err := Validate(&cfg); err != nil {
		return nil, dilerrors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// configScaffold mirrors Config with human-friendly YAML values
// (durations as "10s", not nanosecond integers).
type configScaffold struct {
	Server struct {
		Port            int    `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	State struct {
		AutoPersist bool `yaml:"auto_persist"`
	} `yaml:"state"`
}

// WriteDefault writes the built-in configuration to path as YAML.
// Used by `dilagent init` to scaffold a project config. Fails if the file
// already exists so a hand-edited config is never clobbered.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %q already exists: %w", path, os.ErrExist)
	}

	defaults := Default()
	var scaffold configScaffold
	scaffold.Server.Port = defaults.Server.Port
	scaffold.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout.String()
	scaffold.State.AutoPersist = defaults.State.AutoPersist

	data, err := yaml.Marshal(scaffold)
	if err != nil {
		return dilerrors.Wrap(err, "failed to marshal default config")
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return dilerrors.Wrap(err, "failed to write config file")
	}
	return nil
}

// globalConfigPath returns the global config path, or empty when the home
// directory cannot be determined.
func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, constants.DilagentHome, constants.GlobalConfigName)
}

// mergeConfigFile merges a YAML config file into the viper instance.
// A missing or empty path is silently skipped.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return dilerrors.Wrapf(err, "failed to read config file %q", path)
	}
	return nil
}

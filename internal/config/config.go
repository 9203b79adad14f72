// Package config provides configuration management for violette.
// Configuration is loaded from YAML files with defaults applied for any
// missing values, then validated before use.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	verrors "github.com/edgerunner0x01/violette/internal/errors"
	"github.com/edgerunner0x01/violette/internal/logging"
)

// Default values applied by Default().
const (
	DefaultWorkers       = 10
	DefaultHostTimeout   = 300 * time.Second
	DefaultFreshWindow   = 24 * time.Hour
	DefaultDatabasePath  = "violette.db"
	DefaultListenAddress = ":8080"
)

// Config holds the complete application configuration.
type Config struct {
	Scanning ScanningConfig `yaml:"scanning"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Logging  logging.Config `yaml:"logging"`
}

// ScanningConfig controls scheduler and engine behavior.
type ScanningConfig struct {
	Workers     int           `yaml:"workers" validate:"min=1,max=256"`
	HostTimeout time.Duration `yaml:"host_timeout" validate:"min=1s"`
	FreshWindow time.Duration `yaml:"fresh_window" validate:"min=0"`
	Quick       bool          `yaml:"quick"`
	Exclude     []string      `yaml:"exclude"`
}

// DatabaseConfig controls result storage.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ServerConfig controls the live-results HTTP server.
type ServerConfig struct {
	Listen       string        `yaml:"listen" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"min=1s"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=0"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			Workers:     DefaultWorkers,
			HostTimeout: DefaultHostTimeout,
			FreshWindow: DefaultFreshWindow,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		Server: ServerConfig{
			Listen:       DefaultListenAddress,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // streaming endpoints need an unbounded write window
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration from a YAML file, applying defaults for any
// values not present in the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator
	if err != nil {
		return nil, verrors.NewConfigError(verrors.CodeConfiguration,
			fmt.Sprintf("failed to read config file %s: %v", path, err))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, verrors.NewConfigError(verrors.CodeConfiguration,
			fmt.Sprintf("failed to parse config file %s: %v", path, err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verr validator.ValidationErrors
		if ok := asValidationErrors(err, &verr); ok && len(verr) > 0 {
			first := verr[0]
			return verrors.NewConfigFieldError(verrors.CodeValidation,
				fmt.Sprintf("invalid value for %s (%s)", first.Namespace(), first.Tag()),
				first.Namespace(), first.Value())
		}
		return verrors.NewConfigError(verrors.CodeValidation, err.Error())
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if verr, ok := err.(validator.ValidationErrors); ok {
		*target = verr
		return true
	}
	return false
}

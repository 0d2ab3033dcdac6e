package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"thoreinstein.com/uber/pkg/discovery"
	uberrors "thoreinstein.com/uber/pkg/errors"
)

// Config represents the application configuration.
// Remote URLs and branches are derived from the upstream remote in git, never
// from configuration.
type Config struct {
	Scan   ScanConfig   `mapstructure:"scan"`
	Lock   LockConfig   `mapstructure:"lock"`
	Log    LogConfig    `mapstructure:"log"`
	Output OutputConfig `mapstructure:"output"`
}

// ScanConfig holds directory scanner configuration
type ScanConfig struct {
	Exclusions []string `mapstructure:"exclusions"` // Directory names never descended into
	MaxDepth   int      `mapstructure:"max_depth"`  // Max depth below a project root (0: unlimited)
}

// LockConfig holds manifest write locking configuration
type LockConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // "auto", "text", "json"
}

// OutputConfig holds report output configuration
type OutputConfig struct {
	Format string `mapstructure:"format"` // "text", "json", "yaml"
}

// Valid values for enumerated settings.
var (
	ValidLogLevels     = []string{"debug", "info", "warn", "error"}
	ValidLogFormats    = []string{"auto", "text", "json"}
	ValidOutputFormats = []string{"text", "json", "yaml"}
)

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	normalize(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return config, nil
}

// ValidateChoice validates that value is one of valid.
func ValidateChoice(field, value string, valid []string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return uberrors.NewConfigError(field, "invalid value \""+value+"\": must be one of: "+strings.Join(valid, ", "))
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if c.Scan.MaxDepth < 0 {
		return uberrors.NewConfigError("scan.max_depth", "must not be negative")
	}
	if err := ValidateChoice("log.level", c.Log.Level, ValidLogLevels); err != nil {
		return err
	}
	if err := ValidateChoice("log.format", c.Log.Format, ValidLogFormats); err != nil {
		return err
	}
	return ValidateChoice("output.format", c.Output.Format, ValidOutputFormats)
}

// normalize lowercases enumerated settings and drops empty exclusions.
func normalize(c *Config) {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	c.Scan.Exclusions = slices.DeleteFunc(slices.Clone(c.Scan.Exclusions), func(s string) bool {
		return strings.TrimSpace(s) == ""
	})
}

// setDefaults sets default configuration values
func setDefaults() {
	// Scan defaults
	viper.SetDefault("scan.exclusions", discovery.DefaultExclusions)
	viper.SetDefault("scan.max_depth", 0)

	// Lock defaults
	viper.SetDefault("lock.enabled", true)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "auto")

	// Output defaults
	viper.SetDefault("output.format", "text")
}

// GlobalDir returns the directory holding the global config file.
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".config", "cargo-uber"), nil
}

// NewReadError reports an explicitly requested config file that could not
// be read.
func NewReadError(path string, cause error) error {
	return uberrors.NewConfigErrorWithCause("config", "failed to read "+path, cause)
}

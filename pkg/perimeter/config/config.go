package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level" yaml:"level"`
	Path         string            `mapstructure:"path" yaml:"path"`
	ConsoleLevel string            `mapstructure:"console_level" yaml:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components   map[string]string `mapstructure:"components" yaml:"components"`
}

// StoreConfig configures persistence of collection runs.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // empty means DefaultStorePath
	Retain  int    `mapstructure:"retain" yaml:"retain"`
}

// Config represents the application configuration.
type Config struct {
	Root             string        `mapstructure:"root" yaml:"root"`
	Exclude          []string      `mapstructure:"exclude" yaml:"exclude"`
	Workers          int           `mapstructure:"workers" yaml:"workers"`
	MaxDepth         int           `mapstructure:"max_depth" yaml:"max_depth"`
	IncludeOther     bool          `mapstructure:"include_other" yaml:"include_other"`
	PermissionFormat string        `mapstructure:"permission_format" yaml:"permission_format"`
	Store            StoreConfig   `mapstructure:"store" yaml:"store"`
	Logging          LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations, in order of precedence:
//   - $XDG_CONFIG_HOME/perimeter/config.yaml
//   - $HOME/.config/perimeter/config.yaml
//
// Environment variables are prefixed with PERIMETER_ (e.g., PERIMETER_ROOT).
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith loads configuration into v, which may already carry bound flags.
// A config file set on v with SetConfigFile is read instead of searching the
// config directories.
func LoadWith(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "perimeter"))
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "perimeter"))
	}

	v.SetEnvPrefix("PERIMETER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var (
		cfg Config
		err error
	)
	if err = v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Root, err = ExpandPath(cfg.Root); err != nil {
		return nil, err
	}
	if cfg.Store.Path, err = ExpandPath(cfg.Store.Path); err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	return &cfg, nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", DefaultRoot)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("max_depth", DefaultMaxDepth)
	v.SetDefault("include_other", false)
	v.SetDefault("permission_format", DefaultPermissionFormat)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "")
	v.SetDefault("store.retain", DefaultRetainRuns)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"metadata":  "warn",
		"collector": "info",
		"monitor":   "info",
		"store":     "info",
	})
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "perimeter"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "perimeter"), nil
}

// ConfigPath returns the path of the YAML config file, whether or not it exists.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists and returns its path.
// An existing file is left untouched.
func WriteDefault() (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# perimeter configuration

# Directory collected when none is specified
root: %s

# Paths or glob patterns skipped during collection
exclude:
  - /proc
  - /sys
  - /dev

# Walker concurrency (0 lets perimeter pick from CPU count)
workers: %d

# Maximum directory depth below root (0 means unlimited)
max_depth: %d

# Record sockets, devices, pipes and symlinks (always unresolved)
include_other: false

# Permission rendering: symbolic, octal or flags
permission_format: %s

# Collection run storage
store:
  enabled: true
  # Empty means $XDG_DATA_HOME/perimeter/runs
  path: ""
  # Number of runs kept (0 keeps all)
  retain: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/perimeter/perimeter.log
  path: ""
  # Mirror logs to stderr at this level (empty disables)
  console_level: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    metadata: warn
    collector: info
    monitor: info
    store: info
`, DefaultRoot, DefaultWorkers, DefaultMaxDepth, DefaultPermissionFormat, DefaultRetainRuns)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/perimeter/ for stored runs.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "perimeter")
}

// StateDir returns $XDG_STATE_HOME/perimeter/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "perimeter")
}

// DefaultStorePath returns the default badger directory for collection runs.
func DefaultStorePath() string {
	return filepath.Join(DataDir(), "runs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "perimeter.log")
}

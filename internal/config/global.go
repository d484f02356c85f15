package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/papergraph/config.yml.
type GlobalConfig struct {
	LibraryPath   string  `yaml:"library_path,omitempty"`
	LogMode       string  `yaml:"log_mode,omitempty"`
	WatchDebounce string  `yaml:"watch_debounce,omitempty"` // Go duration, e.g. "250ms"
	RebuildRate   float64 `yaml:"rebuild_rate,omitempty"`   // Max graph rebuilds per second in watch mode
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "papergraph"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// Environment overrides, typically set in a .env file.
	EnvLibraryPath = "PG_LIBRARY_PATH"
	EnvLogMode     = "PG_LOG_MODE"

	DefaultWatchDebounce = 250 * time.Millisecond
	DefaultRebuildRate   = 1.0
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/papergraph/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file and applies
// environment overrides. Returns an empty config (not an error) if the file
// doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg GlobalConfig
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvLibraryPath)); v != "" {
		cfg.LibraryPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogMode)); v != "" {
		cfg.LogMode = v
	}
	if cfg.LibraryPath != "" {
		cfg.LibraryPath = ExpandPath(cfg.LibraryPath)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// GetLibraryPath returns the configured library path from global config.
func GetLibraryPath() string {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.LibraryPath
}

// GetLogMode returns the configured log mode, empty for the default.
func GetLogMode() string {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.LogMode
}

// ErrInvalidDebounce is returned when watch_debounce doesn't parse.
var ErrInvalidDebounce = errors.New("invalid watch_debounce")

// Debounce returns the watch debounce window, or the default if unset.
func (c *GlobalConfig) Debounce() (time.Duration, error) {
	if c.WatchDebounce == "" {
		return DefaultWatchDebounce, nil
	}
	d, err := time.ParseDuration(c.WatchDebounce)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDebounce, c.WatchDebounce)
	}
	return d, nil
}

// Rate returns the watch-mode rebuild rate, or the default if unset.
func (c *GlobalConfig) Rate() float64 {
	if c.RebuildRate <= 0 {
		return DefaultRebuildRate
	}
	return c.RebuildRate
}

// HelpfulConfigMessage returns a helpful message when no library is found.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No papergraph library found.

Run 'pg init' in a directory to create one, or create %s to set a default:
  mkdir -p %s
  echo 'library_path: /path/to/your/library' > %s`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}

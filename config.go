package cellscope

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the name of the configuration file looked up in a notebook
// directory.
const ConfigFile = ".cellscope.yaml"

// Config holds user-overridable settings. Unset fields fall back to the
// defaults returned by the Effective* accessors.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Default: warn.
	LogLevel *string `yaml:"log_level"`

	// VerboseMatch logs every template mismatch at debug level.
	// Default: false.
	VerboseMatch *bool `yaml:"verbose_match"`

	// RenameSuffixStart is the first numeric suffix tried when proposing a
	// rename for a duplicate definition. Default: 2.
	RenameSuffixStart *int `yaml:"rename_suffix_start"`

	// DebounceMS is the quiet period of the watch command. Default: 200.
	DebounceMS *int `yaml:"debounce_ms"`

	// RulesDir holds extra .risor rules for the check command.
	RulesDir string `yaml:"rules_dir"`

	// DB is the snapshot database of the index command.
	// Default: cellscope.db.
	DB string `yaml:"db"`
}

// DefaultConfig returns a configuration with every field unset.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig reads ConfigFile from dir. A missing or invalid file yields
// the default configuration.
func LoadConfig(dir string) *Config {
	return LoadConfigFile(filepath.Join(dir, ConfigFile))
}

// LoadConfigFile reads the configuration at path, falling back to the
// defaults when it cannot be read or parsed.
func LoadConfigFile(path string) *Config {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig()
	}
	return cfg
}

// EffectiveLogLevel returns the configured log level, or warn.
func (c *Config) EffectiveLogLevel() slog.Level {
	if c.LogLevel != nil {
		if level, ok := ParseLevel(*c.LogLevel); ok {
			return level
		}
	}
	return slog.LevelWarn
}

// EffectiveVerboseMatch returns the configured verbose_match, or false.
func (c *Config) EffectiveVerboseMatch() bool {
	if c.VerboseMatch != nil {
		return *c.VerboseMatch
	}
	return false
}

// EffectiveRenameSuffixStart returns the configured first rename suffix,
// or 2. Values below 1 are ignored.
func (c *Config) EffectiveRenameSuffixStart() int {
	if c.RenameSuffixStart != nil && *c.RenameSuffixStart >= 1 {
		return *c.RenameSuffixStart
	}
	return 2
}

// EffectiveDebounce returns the configured debounce period, or 200ms.
func (c *Config) EffectiveDebounce() time.Duration {
	if c.DebounceMS != nil && *c.DebounceMS >= 0 {
		return time.Duration(*c.DebounceMS) * time.Millisecond
	}
	return 200 * time.Millisecond
}

// EffectiveDB returns the configured snapshot database path, or
// cellscope.db.
func (c *Config) EffectiveDB() string {
	if c.DB != "" {
		return c.DB
	}
	return "cellscope.db"
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

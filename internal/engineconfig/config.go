// Package engineconfig resolves the engine's ambient configuration —
// display timezone, TTL defaults, test-mode isolation, and logging — with
// the usual flag > env > file > default precedence, the way the teacher's
// internal/config package layers bd's settings.
package engineconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/recordcache/recordcache/internal/tsnorm"
)

// EnvPrefix is the environment variable prefix for every engineconfig key
// (e.g. RECORDCACHE_DISPLAY_TIMEZONE).
const EnvPrefix = "RECORDCACHE"

// Config is the engine's resolved ambient configuration.
type Config struct {
	DisplayTimezone string        `mapstructure:"display_timezone" toml:"display_timezone"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl" toml:"default_ttl"`
	TestMode        bool          `mapstructure:"test_mode" toml:"test_mode"`
	LogLevel        string        `mapstructure:"log_level" toml:"log_level"`
	LogDestinations []string      `mapstructure:"log_destinations" toml:"log_destinations"`
	LogColor        bool          `mapstructure:"log_color" toml:"log_color"`
}

func defaults() Config {
	return Config{
		DisplayTimezone: "utc",
		DefaultTTL:      12 * time.Hour,
		TestMode:        false,
		LogLevel:        "info",
		LogDestinations: []string{"stderr"},
		LogColor:        true,
	}
}

// Option customises Load.
type Option func(*viper.Viper)

// WithConfigFile points Load at an explicit config file path (yaml, toml,
// or json — whatever viper's codec supports) instead of searching the
// default locations.
func WithConfigFile(path string) Option {
	return func(v *viper.Viper) { v.SetConfigFile(path) }
}

// WithFlagBinding lets a cobra command's flag set override config values,
// giving flags top precedence over env/file/default.
func WithFlagBinding(bind func(v *viper.Viper)) Option {
	return func(v *viper.Viper) { bind(v) }
}

// Load resolves Config with precedence flag > env > file > default,
// mirroring the teacher's config-layering order.
func Load(opts ...Option) (*Config, error) {
	v := viper.New()

	d := defaults()
	v.SetDefault("display_timezone", d.DisplayTimezone)
	v.SetDefault("default_ttl", d.DefaultTTL)
	v.SetDefault("test_mode", d.TestMode)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_destinations", d.LogDestinations)
	v.SetDefault("log_color", d.LogColor)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("recordcache")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	for _, opt := range opts {
		opt(v)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("engineconfig: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("engineconfig: unmarshal: %w", err)
	}
	return &cfg, nil
}

// LoadTOMLOverrides reads a TOML file of override values and merges them
// onto base, with file values winning. Offered alongside the primary YAML
// config path for deployments that prefer TOML.
func LoadTOMLOverrides(path string, base *Config) error {
	var overrides Config
	meta, err := toml.DecodeFile(path, &overrides)
	if err != nil {
		return fmt.Errorf("engineconfig: decode toml overrides: %w", err)
	}
	if meta.IsDefined("display_timezone") {
		base.DisplayTimezone = overrides.DisplayTimezone
	}
	if meta.IsDefined("default_ttl") {
		base.DefaultTTL = overrides.DefaultTTL
	}
	if meta.IsDefined("test_mode") {
		base.TestMode = overrides.TestMode
	}
	if meta.IsDefined("log_level") {
		base.LogLevel = overrides.LogLevel
	}
	if meta.IsDefined("log_destinations") {
		base.LogDestinations = overrides.LogDestinations
	}
	if meta.IsDefined("log_color") {
		base.LogColor = overrides.LogColor
	}
	return nil
}

// StorePath resolves the on-disk location of the cache store file. In test
// mode it isolates each process into its own temp directory, keyed by pid,
// matching the contract's "routes store and log paths to an isolated temp
// location per process id".
func (c Config) StorePath(configuredPath string) string {
	if !c.TestMode {
		return configuredPath
	}
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("recordcache-test-%d", os.Getpid()))
	return filepath.Join(dir, "cache.db")
}

// LogPath mirrors StorePath for the log destination when test mode is on
// and a log destination resolves to a file rather than stderr/stdout.
func (c Config) LogPath(configuredPath string) string {
	if !c.TestMode {
		return configuredPath
	}
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("recordcache-test-%d", os.Getpid()))
	return filepath.Join(dir, "recordcache.log")
}

// DisplayLocation resolves DisplayTimezone to a *time.Location via the
// Timestamp Normaliser's own zone-resolution precedence.
func (c Config) DisplayLocation() (*time.Location, error) {
	return tsnorm.ResolveZone(tsnorm.Zone{Name: c.DisplayTimezone})
}

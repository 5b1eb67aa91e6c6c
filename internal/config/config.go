// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/strata-dev/strata/internal/logging"
	"github.com/strata-dev/strata/internal/secrets"
	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// FileName is the configuration file name looked up in the search paths.
const FileName = "strata.yaml"

// MemoryPath keeps the vector index inside the process.
const MemoryPath = ":memory:"

// Config is the top-level strata configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Retention RetentionConfig `mapstructure:"retention"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Log       LogConfig       `mapstructure:"log"`

	// file is the configuration file the values were read from.
	file string
}

// DatabaseConfig holds the store connection parameters.
type DatabaseConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RetentionConfig controls compression and purge.
type RetentionConfig struct {
	Window time.Duration `mapstructure:"window"`
	Purge  bool          `mapstructure:"purge"`
}

// SchedulerConfig controls the background daemon.
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// VectorConfig locates the persisted vector index.
type VectorConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadOptions adjusts Load.
type LoadOptions struct {
	// Secrets resolves keyring:// values. Nil leaves them unresolved.
	Secrets secrets.Store
	// Overrides take precedence over the file and the environment, keyed
	// by dotted config key. Command-line flags use this.
	Overrides map[string]any
}

// SearchPaths returns the locations Load tries, in order, when no path is
// given.
func SearchPaths() []string {
	paths := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "strata", FileName))
	}
	return append(paths, filepath.Join("/etc", "strata", FileName))
}

// Find returns the first existing file of SearchPaths.
func Find() (string, error) {
	paths := SearchPaths()
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", strataerr.Errorf(strataerr.CodeConfigLoadReadFailure,
		"no configuration file found (searched %s); run `strata init` to create one",
		strings.Join(paths, ", "))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("database.backend", "sqlite")
	v.SetDefault("database.path", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "strata")
	v.SetDefault("database.user", "strata")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("retention.window", "720h")
	v.SetDefault("retention.purge", false)
	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.lease_ttl", "10m")
	v.SetDefault("vector.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration file at path, or the first file found in
// SearchPaths when path is empty, applies STRATA_ environment overrides and
// validates the result. A missing, unreadable or malformed file fails with
// a config error, which callers treat as fatal.
func Load(path string, opts LoadOptions) (*Config, error) {
	if path == "" {
		found, err := Find()
		if err != nil {
			return nil, err
		}
		path = found
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return nil, strataerr.Errorf(strataerr.CodeConfigParseInvalidFormat, "parsing config %s: %w", path, err)
		}
		return nil, strataerr.Errorf(strataerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	if opts.Secrets != nil {
		if err := secrets.ResolveViperSecrets(v, opts.Secrets); err != nil {
			// Keep the config code on top; %v drops the secret error codes.
			return nil, strataerr.Errorf(strataerr.CodeConfigLoadReadFailure, "resolving secrets in %s: %v", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeConfigParseInvalidFormat, "decoding config %s: %w", path, err)
	}
	cfg.file = path

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue, "validating config %s: %w", path, errors.Join(errs...))
	}

	return &cfg, nil
}

// File returns the configuration file the values were read from.
func (c *Config) File() string { return c.file }

// Storage returns the store factory configuration. The SQLite file defaults
// to <data_dir>/<name>.db.
func (c *Config) Storage() *store.StorageConfig {
	path := c.Database.Path
	if path == "" && c.Database.Backend == "sqlite" {
		path = filepath.Join(c.DataDir, c.Database.Name+".db")
	}
	return &store.StorageConfig{
		Backend:  c.Database.Backend,
		Path:     path,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Name:     c.Database.Name,
		User:     c.Database.User,
		Password: c.Database.Password,
		SSLMode:  c.Database.SSLMode,
	}
}

// VectorPath returns the vector index file, defaulting to
// <data_dir>/vectors.db.
func (c *Config) VectorPath() string {
	if c.Vector.Path != "" {
		return c.Vector.Path
	}
	return filepath.Join(c.DataDir, "vectors.db")
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, invalid("data_dir must not be empty"))
	}

	errs = append(errs, c.validateDatabase()...)
	errs = append(errs, c.validateRetention()...)
	errs = append(errs, c.validateScheduler()...)
	errs = append(errs, c.validateLog()...)

	return errs
}

func (c *Config) validateDatabase() []error {
	var errs []error
	db := c.Database

	switch db.Backend {
	case "sqlite":
		if db.Path == "" && db.Name == "" {
			errs = append(errs, invalid("database.name or database.path is required for sqlite"))
		}
	case "postgres":
		if db.Host == "" {
			errs = append(errs, invalid("database.host must not be empty for postgres"))
		}
		if db.Name == "" {
			errs = append(errs, invalid("database.name must not be empty for postgres"))
		}
		if db.User == "" {
			errs = append(errs, invalid("database.user must not be empty for postgres"))
		}
		if db.Port < 1 || db.Port > 65535 {
			errs = append(errs, invalid("database.port must be between 1 and 65535, got %d", db.Port))
		}
		validModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
		if !slices.Contains(validModes, db.SSLMode) {
			errs = append(errs, invalid("database.sslmode must be one of [%s], got %q",
				strings.Join(validModes, ", "), db.SSLMode))
		}
		if secrets.IsKeyringURI(db.Password) {
			errs = append(errs, invalid("database.password %q was not resolved", db.Password))
		}
	default:
		errs = append(errs, invalid("database.backend must be one of [sqlite, postgres], got %q", db.Backend))
	}

	return errs
}

func (c *Config) validateRetention() []error {
	if c.Retention.Window <= 0 {
		return []error{invalid("retention.window must be positive, got %s", c.Retention.Window)}
	}
	return nil
}

func (c *Config) validateScheduler() []error {
	var errs []error
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, invalid("scheduler.interval must be positive, got %s", c.Scheduler.Interval))
	}
	if c.Scheduler.LeaseTTL < 3*time.Second {
		errs = append(errs, invalid("scheduler.lease_ttl must be at least 3s, got %s", c.Scheduler.LeaseTTL))
	}
	return errs
}

func (c *Config) validateLog() []error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, invalid("log.level: %v", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, invalid("log.format must be one of [text, json], got %q", c.Log.Format))
	}
	return errs
}

func invalid(format string, args ...any) error {
	return strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

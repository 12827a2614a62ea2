// Package config loads taskql settings from a config file, TASKQL_*
// environment variables, and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source kinds accepted by the "source" key.
const (
	SourceDir    = "dir"
	SourceJSONL  = "jsonl"
	SourceSQLite = "sqlite"
)

// Config holds every setting the CLI reads.
type Config struct {
	Source      string `mapstructure:"source"`
	TasksDir    string `mapstructure:"tasks_dir"`
	JSONLPath   string `mapstructure:"jsonl_path"`
	DBPath      string `mapstructure:"db_path"`
	ProfilePath string `mapstructure:"profile_path"`
	Profile     string `mapstructure:"profile"`
	Color       string `mapstructure:"color"` // auto, always, never

	Cache CacheConfig `mapstructure:"cache"`
	Log   LogConfig   `mapstructure:"log"`

	// File is the config file that was read, or "" when none was found.
	File string `mapstructure:"-"`
}

// CacheConfig sizes the query result cache.
type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LogConfig controls diagnostic logging. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Defaults are applied before any file, variable, or flag.
var defaults = map[string]any{
	"source":           SourceDir,
	"tasks_dir":        "tasks",
	"jsonl_path":       "tasks.jsonl",
	"db_path":          filepath.Join(".taskql", "tasks.db"),
	"profile_path":     "",
	"profile":          "",
	"color":            "auto",
	"cache.capacity":   64,
	"cache.ttl":        30 * time.Second,
	"log.file":         "",
	"log.max_size_mb":  10,
	"log.max_backups":  3,
	"log.max_age_days": 28,
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. When set, it must exist.
	File string
	// Dirs are searched for taskql.{toml,yaml,yml,json} when File is empty.
	// Nil means the working directory and $HOME/.config/taskql.
	Dirs []string
	// Flags are bound onto keys of the same name (dashes become
	// underscores, so --tasks-dir sets tasks_dir).
	Flags *pflag.FlagSet
}

// Load builds a Config from defaults, the config file, the environment,
// and flags.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("TASKQL")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := flagKey(f.Name)
			if _, known := defaults[key]; !known {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("taskql")
		dirs := opts.Dirs
		if dirs == nil {
			dirs = defaultDirs()
		}
		for _, dir := range dirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Source {
	case SourceDir, SourceJSONL, SourceSQLite:
	default:
		errs = append(errs, fmt.Errorf("source must be %s, %s, or %s (got %q)", SourceDir, SourceJSONL, SourceSQLite, c.Source))
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("color must be auto, always, or never (got %q)", c.Color))
	}
	if c.Cache.Capacity < 0 {
		errs = append(errs, fmt.Errorf("cache.capacity must not be negative (got %d)", c.Cache.Capacity))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative (got %s)", c.Cache.TTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "taskql"))
	}
	return dirs
}

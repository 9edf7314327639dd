// Package config loads nudb configuration from YAML files.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/log"
	"github.com/ha1tch/nudb/pkg/sqlite"
)

// Duration is a time.Duration that reads from YAML strings like "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var n int64
		if err := unmarshal(&n); err != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds nudb configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Busy    BusyConfig    `yaml:"busy"`
	History HistoryConfig `yaml:"history"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"

	// Categories overrides Level per category, e.g. {query: debug}.
	Categories map[string]string `yaml:"categories,omitempty"`
}

// BusyConfig controls retrying when the database is locked.
type BusyConfig struct {
	Interval    Duration `yaml:"interval"`
	MaxAttempts int      `yaml:"max_attempts"` // 0 retries forever
}

// HistoryConfig names the shared in-memory history database.
type HistoryConfig struct {
	Name string `yaml:"name"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Busy: BusyConfig{
			Interval:    Duration(250 * time.Millisecond),
			MaxAttempts: 0,
		},
		History: HistoryConfig{
			Name: sqlite.DefaultHistoryName,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrapf(err, errors.ErrCodeConfigMissing, "config file %s not found", path).
				WithField("path", path).Err()
		}
		return cfg, errors.Wrapf(err, errors.ErrCodeConfigInvalid, "read config file %s", path).
			WithField("path", path).Err()
	}

	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, errors.ErrCodeConfigParse, "parse config file %s", path).
			WithField("path", path).Err()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid log.level").
			WithField("value", c.Log.Level).Err()
	}
	if _, err := c.categoryLevels(); err != nil {
		return err
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid log.format").
			WithField("value", c.Log.Format).Err()
	}
	if c.Busy.Interval <= 0 {
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("busy.interval must be positive, got %s", time.Duration(c.Busy.Interval))).Err()
	}
	if c.Busy.MaxAttempts < 0 {
		return errors.Newf(errors.ErrCodeConfigValidation,
			"busy.max_attempts must not be negative, got %d", c.Busy.MaxAttempts).Err()
	}
	if c.History.Name == "" {
		return errors.New(errors.ErrCodeConfigValidation, "history.name must not be empty").Err()
	}
	return nil
}

// Logger builds a logger from the log section, writing to stderr.
func (c Config) Logger() *log.Logger {
	return c.LoggerTo(nil)
}

// LoggerTo builds a logger from the log section, writing to w.
func (c Config) LoggerTo(w io.Writer) *log.Logger {
	level, _ := log.ParseLevel(c.Log.Level)
	format, _ := log.ParseFormat(c.Log.Format)
	categories, _ := c.categoryLevels()
	return log.New(log.Config{
		DefaultLevel:   level,
		CategoryLevels: categories,
		Output:         w,
		Format:         format,
		IncludeCaller:  level == log.LevelDebug,
	})
}

func (c Config) categoryLevels() (map[log.Category]log.Level, error) {
	if len(c.Log.Categories) == 0 {
		return nil, nil
	}
	known := make(map[log.Category]bool, len(log.Categories))
	for _, cat := range log.Categories {
		known[cat] = true
	}
	levels := make(map[log.Category]log.Level, len(c.Log.Categories))
	for name, raw := range c.Log.Categories {
		cat := log.Category(name)
		if !known[cat] {
			return nil, errors.Newf(errors.ErrCodeConfigValidation, "unknown log category %q", name).
				WithField("category", name).Err()
		}
		level, err := log.ParseLevel(raw)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeConfigValidation, "invalid log.categories.%s", name).
				WithField("value", raw).Err()
		}
		levels[cat] = level
	}
	return levels, nil
}

// SQLiteOptions converts the busy and history sections for sqlite.Open.
func (c Config) SQLiteOptions(logger *log.Logger) sqlite.Options {
	return sqlite.Options{
		BusyInterval:    time.Duration(c.Busy.Interval),
		BusyMaxAttempts: c.Busy.MaxAttempts,
		HistoryName:     c.History.Name,
		Logger:          logger,
	}
}

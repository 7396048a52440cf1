// Package config loads redline settings from a TOML file.
//
// A settings file looks like:
//
//	author = "Legal Review"
//	date = "2026-01-02T15:04:05Z"
//	word_separators = " -/"
//	detail_threshold = 0.2
//	hash_algorithm = "sha256"
//
//	[log]
//	level = "debug"
//	format = "json"
//
// Keys left out keep their defaults. Environment variables override the
// file, and command-line flags override both.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/FocuswithJustin/redline/core/compare"
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/internal/logging"
)

// Config is the file representation of compare.Settings plus logging.
type Config struct {
	Author          string  `toml:"author"`
	Date            string  `toml:"date"`
	WordSeparators  string  `toml:"word_separators"`
	DetailThreshold float64 `toml:"detail_threshold"`
	HashAlgorithm   string  `toml:"hash_algorithm"`

	Log LogConfig `toml:"log"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration. Date is left empty so each
// comparison is stamped with its own time.
func Default() *Config {
	d := compare.DefaultSettings()
	return &Config{
		Author:          d.Author,
		WordSeparators:  d.WordSeparators,
		DetailThreshold: *d.DetailThreshold,
		HashAlgorithm:   d.HashAlgorithm,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromPath decodes a TOML file over the defaults, applies environment
// overrides and validates the result. Unknown keys are an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIO("read", path, err)
		}
		pe := errors.NewParse("TOML", path, err.Error())
		pe.Err = err
		return nil, pe
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, &errors.ValidationError{
			Field:   "config",
			Value:   strings.Join(keys, ", "),
			Message: fmt.Sprintf("unknown keys in %s: %s", path, strings.Join(keys, ", ")),
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load returns the defaults with environment overrides, or the file at
// path when path is not empty.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnvOverrides applies environment variable overrides:
//   - REDLINE_AUTHOR: overrides author
//   - REDLINE_DATE: overrides date
//   - REDLINE_THRESHOLD: overrides detail_threshold
//   - REDLINE_HASH: overrides hash_algorithm
//   - REDLINE_LOG_LEVEL: overrides log.level
//   - REDLINE_LOG_FORMAT: overrides log.format
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("REDLINE_AUTHOR"); v != "" {
		c.Author = v
	}
	if v := os.Getenv("REDLINE_DATE"); v != "" {
		c.Date = v
	}
	if v := os.Getenv("REDLINE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &errors.ValidationError{Field: "REDLINE_THRESHOLD", Value: v, Message: "not a number", Err: err}
		}
		c.DetailThreshold = f
	}
	if v := os.Getenv("REDLINE_HASH"); v != "" {
		c.HashAlgorithm = v
	}
	if v := os.Getenv("REDLINE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDLINE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks the comparison settings and the log configuration.
func (c *Config) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return &errors.ValidationError{Field: "log.level", Value: c.Log.Level, Message: err.Error()}
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return &errors.ValidationError{Field: "log.format", Value: c.Log.Format, Message: err.Error()}
	}
	return nil
}

// Settings converts the configuration to comparison settings. Transformers
// and the logger are left for the caller.
func (c *Config) Settings() compare.Settings {
	return compare.Settings{
		WordSeparators:  c.WordSeparators,
		Author:          c.Author,
		Date:            c.Date,
		DetailThreshold: compare.Threshold(c.DetailThreshold),
		HashAlgorithm:   c.HashAlgorithm,
	}
}

// InitLogging configures the global logger from the log section.
func (c *Config) InitLogging() error {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

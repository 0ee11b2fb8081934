// Package config loads nanob settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"simonwaldherr.de/go/nanob/interp"
)

// FileName is looked up in the working directory when no path is given.
const FileName = "nanob.yaml"

// Config holds the settings shared by the CLI and the REPL.
type Config struct {
	Path     string // file the settings came from, empty for defaults
	Timeout  time.Duration // zero means no limit
	MaxDepth int
	LogLevel slog.Level
	History  string // REPL history file, empty disables it
}

// fileConfig mirrors the on-disk layout.
type fileConfig struct {
	Timeout  string `yaml:"timeout"`
	MaxDepth *int   `yaml:"max_depth"`
	LogLevel string `yaml:"log_level"`
	History  string `yaml:"history"`
}

// ValidationError collects every problem found in a config file.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	return "config: " + strings.Join(e.Issues, "; ")
}

func Default() *Config {
	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".nanob_history")
	}
	return &Config{
		Timeout:  10 * time.Second,
		MaxDepth: interp.DefaultMaxDepth,
		LogLevel: slog.LevelWarn,
		History:  history,
	}
}

// Find loads path if set. Otherwise it loads FileName from the working
// directory when present and falls back to the defaults.
func Find(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(FileName); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(FileName)
}

// Load reads one YAML file. Unknown keys are rejected; an empty file
// yields the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return decode(path, f)
}

func decode(path string, r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw fileConfig
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg, err := raw.toConfig()
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (raw fileConfig) toConfig() (*Config, error) {
	cfg := Default()
	var errs ValidationError
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("timeout %q is not a duration", raw.Timeout))
		}
		cfg.Timeout = d
	}
	if raw.MaxDepth != nil {
		cfg.MaxDepth = *raw.MaxDepth
	}
	if raw.LogLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw.LogLevel)); err != nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("log_level %q is not a level", raw.LogLevel))
		}
	}
	if raw.History != "" {
		cfg.History = expandHome(raw.History)
	}
	if len(errs.Issues) > 0 {
		return nil, &errs
	}
	return cfg, nil
}

// Validate checks value ranges. It is also called after flags override a loaded config.
func (c *Config) Validate() error {
	var errs ValidationError
	if c.Timeout < 0 {
		errs.Issues = append(errs.Issues, "timeout must not be negative")
	}
	if c.MaxDepth < 1 {
		errs.Issues = append(errs.Issues, "max_depth must be at least 1")
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
}

// Package config loads regparser settings from an optional YAML file and
// REGPARSER_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/coolbeans/regparser/pkg/profile"
	"github.com/coolbeans/regparser/pkg/supplement"
)

const envPrefix = "REGPARSER_"

// Config holds every setting the CLI and API read.
type Config struct {
	// Profiles
	ProfileDir   string `yaml:"profile_dir"`
	Profile      string `yaml:"profile"`
	SupplementID string `yaml:"supplement_id"`

	// Output
	OutputDir string `yaml:"output_dir"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// HTTP API
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	// Concurrent parsing
	Workers int `yaml:"workers"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ProfileDir:     "profiles",
		Profile:        profile.DefaultID,
		SupplementID:   supplement.DefaultID,
		OutputDir:      "out",
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":8095",
		MaxUploadBytes: 10 << 20,
		Workers:        4,
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.ProfileDir = envOr("PROFILE_DIR", c.ProfileDir)
	c.Profile = envOr("PROFILE", c.Profile)
	c.SupplementID = envOr("SUPPLEMENT", c.SupplementID)
	c.OutputDir = envOr("OUTPUT_DIR", c.OutputDir)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.Addr = envOr("ADDR", c.Addr)

	var err error
	if c.Workers, err = envInt("WORKERS", c.Workers); err != nil {
		return err
	}
	if c.MaxUploadBytes, err = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes); err != nil {
		return err
	}
	return nil
}

// Validate checks every field.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Profile, validation.Required),
		validation.Field(&c.SupplementID, validation.Required, validation.By(romanID)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
	)
}

// SupplementFor returns the supplement id to parse p with. A profile that
// names its own supplement keeps it.
func (c Config) SupplementFor(p *profile.Profile) string {
	if p != nil && p.SupplementID != "" {
		return p.SupplementID
	}
	return c.SupplementID
}

func romanID(value interface{}) error {
	s, _ := value.(string)
	if !supplement.ValidID(s) {
		return fmt.Errorf("must be a roman numeral")
	}
	return nil
}

// NewLogger builds the process logger from the logging settings.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

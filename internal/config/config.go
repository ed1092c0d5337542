// Package config loads configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr string `yaml:"listen_addr"`
	StaticDir  string `yaml:"static_dir"`

	// Status bridge
	StatusFile   string        `yaml:"status_file"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Profiles
	ProfileDir       string `yaml:"profile_dir"`
	PlaceholderImage string `yaml:"placeholder_image"`

	// Presentation
	GracePeriod  time.Duration `yaml:"grace_period"`
	FadeDuration time.Duration `yaml:"fade_duration"`
	SleepOpacity float64       `yaml:"sleep_opacity"`
	Dim          bool          `yaml:"dim"`
	DebugPanel   bool          `yaml:"debug_panel"`
	GuestPrompt  string        `yaml:"guest_prompt"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		ListenAddr:       ":8320",
		StaticDir:        "",
		StatusFile:       "status.json",
		PollInterval:     time.Second,
		ProfileDir:       "public",
		PlaceholderImage: "guest.png",
		GracePeriod:      30 * time.Second,
		FadeDuration:     2 * time.Second,
		SleepOpacity:     0.9,
		Dim:              true,
		DebugPanel:       false,
		GuestPrompt:      "Welcome!",
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty and no default file exists), then
// FACEMIRROR_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("facemirror.yaml"); err == nil {
			path = "facemirror.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.SleepOpacity < 0 || cfg.SleepOpacity > 1 {
		cfg.SleepOpacity = Default().SleepOpacity
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = envOr("FACEMIRROR_LISTEN_ADDR", cfg.ListenAddr)
	cfg.StaticDir = envOr("FACEMIRROR_STATIC_DIR", cfg.StaticDir)
	cfg.StatusFile = envOr("FACEMIRROR_STATUS_FILE", cfg.StatusFile)
	cfg.PollInterval = envDuration("FACEMIRROR_POLL_INTERVAL", cfg.PollInterval)
	cfg.ProfileDir = envOr("FACEMIRROR_PROFILE_DIR", cfg.ProfileDir)
	cfg.PlaceholderImage = envOr("FACEMIRROR_PLACEHOLDER_IMAGE", cfg.PlaceholderImage)
	cfg.GracePeriod = envDuration("FACEMIRROR_GRACE_PERIOD", cfg.GracePeriod)
	cfg.FadeDuration = envDuration("FACEMIRROR_FADE_DURATION", cfg.FadeDuration)
	cfg.SleepOpacity = envFloat("FACEMIRROR_SLEEP_OPACITY", cfg.SleepOpacity)
	cfg.Dim = envBool("FACEMIRROR_DIM", cfg.Dim)
	cfg.DebugPanel = envBool("FACEMIRROR_DEBUG_PANEL", cfg.DebugPanel)
	cfg.GuestPrompt = envOr("FACEMIRROR_GUEST_PROMPT", cfg.GuestPrompt)
	cfg.LogLevel = envOr("FACEMIRROR_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("FACEMIRROR_LOG_FORMAT", cfg.LogFormat)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// envDuration accepts Go duration strings ("500ms", "30s") and, for
// compatibility with the dashboard host's config, bare integers meaning
// milliseconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

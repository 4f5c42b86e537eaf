// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the orchestrator. The core exposes a
// programmatic API, not a CLI, so every input here arrives via environment
// variables.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	StorePath string `env:"STORE_PATH, default=./data/jobs.db" json:"store_path"`
	TempDir   string `env:"TEMP_DIR, default=/tmp/renderqueue" json:"temp_dir"`

	// Tool paths, one per stage kind
	TimelineRendererPath string `env:"TOOL_TIMELINE_RENDERER_PATH, required" json:"timeline_renderer_path"`
	UpscaleAIAnimePath    string `env:"TOOL_UPSCALE_AI_ANIME_PATH" json:"upscale_ai_anime_path,omitempty"`
	UpscaleAIPhotoPath    string `env:"TOOL_UPSCALE_AI_PHOTO_PATH" json:"upscale_ai_photo_path,omitempty"`
	EncoderPath           string `env:"TOOL_ENCODER_PATH, required" json:"encoder_path"`
	InterpolateBackendPath string `env:"TOOL_INTERPOLATE_BACKEND_PATH" json:"interpolate_backend_path,omitempty"`

	// Scheduling settings
	MaxConcurrentRenders int `env:"MAX_CONCURRENT_RENDERS, default=1" json:"max_concurrent_renders"`
	DefaultMaxRetries    int `env:"DEFAULT_MAX_RETRIES, default=3" json:"default_max_retries"`
	WorkQueueCapacity    int `env:"WORK_QUEUE_CAPACITY, default=64" json:"work_queue_capacity"`

	// Timeout/grace windows, all configurable per spec §5
	PreflightTimeoutMs  int `env:"PREFLIGHT_TIMEOUT_MS, default=2000" json:"preflight_timeout_ms"`
	ModelWarmupTimeoutMs int `env:"MODEL_WARMUP_TIMEOUT_MS, default=600000" json:"model_warmup_timeout_ms"`
	GraceStopHeavyMs    int `env:"GRACE_STOP_HEAVY_MS, default=3000" json:"grace_stop_heavy_ms"`
	GraceStopAuxMs      int `env:"GRACE_STOP_AUX_MS, default=2000" json:"grace_stop_aux_ms"`
	ShutdownDrainMs     int `env:"SHUTDOWN_DRAIN_MS, default=5000" json:"shutdown_drain_ms"`

	// Progress throttling floors per spec §7
	ProgressEventFloorMs   int `env:"PROGRESS_EVENT_FLOOR_MS, default=100" json:"progress_event_floor_ms"`
	ProgressPersistFloorMs int `env:"PROGRESS_PERSIST_FLOOR_MS, default=1000" json:"progress_persist_floor_ms"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.TimelineRendererPath == "" {
		return fmt.Errorf("config: TOOL_TIMELINE_RENDERER_PATH is required")
	}
	if c.EncoderPath == "" {
		return fmt.Errorf("config: TOOL_ENCODER_PATH is required")
	}
	if c.MaxConcurrentRenders <= 0 {
		return fmt.Errorf("config: MAX_CONCURRENT_RENDERS must be positive")
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration. When
// LogFormat is "json", it outputs JSON logs suitable for production;
// otherwise it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// PreflightTimeout is the configured preflight tool-check deadline.
func (c *Config) PreflightTimeout() time.Duration {
	return time.Duration(c.PreflightTimeoutMs) * time.Millisecond
}

// GraceStopHeavy is the graceful-stop window for heavy tools (renderer, AI backends).
func (c *Config) GraceStopHeavy() time.Duration {
	return time.Duration(c.GraceStopHeavyMs) * time.Millisecond
}

// GraceStopAux is the graceful-stop window for auxiliary/piped tools (encoders).
func (c *Config) GraceStopAux() time.Duration {
	return time.Duration(c.GraceStopAuxMs) * time.Millisecond
}

// ShutdownDrain is the total grace window the scheduler waits for workers to
// drain during shutdown.
func (c *Config) ShutdownDrain() time.Duration {
	return time.Duration(c.ShutdownDrainMs) * time.Millisecond
}

// ProgressEventFloor is the minimum interval between progress events
// delivered to subscribers for one job.
func (c *Config) ProgressEventFloor() time.Duration {
	return time.Duration(c.ProgressEventFloorMs) * time.Millisecond
}

// ProgressPersistFloor is the minimum interval between progress-only store
// writes for one job.
func (c *Config) ProgressPersistFloor() time.Duration {
	return time.Duration(c.ProgressPersistFloorMs) * time.Millisecond
}

// String returns a string representation of the config with nothing
// sensitive masked, since this domain has no secrets to hide.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, StorePath: %s, TempDir: %s, MaxConcurrentRenders: %d, DefaultMaxRetries: %d, LogFormat: %s, LogLevel: %s}",
		c.Port, c.StorePath, c.TempDir, c.MaxConcurrentRenders, c.DefaultMaxRetries, c.LogFormat, c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

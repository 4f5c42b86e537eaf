package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv() {
	for _, k := range []string{
		"PORT", "STORE_PATH", "TEMP_DIR",
		"TOOL_TIMELINE_RENDERER_PATH", "TOOL_UPSCALE_AI_ANIME_PATH", "TOOL_UPSCALE_AI_PHOTO_PATH",
		"TOOL_ENCODER_PATH", "TOOL_INTERPOLATE_BACKEND_PATH",
		"MAX_CONCURRENT_RENDERS", "DEFAULT_MAX_RETRIES", "WORK_QUEUE_CAPACITY",
		"LOG_FORMAT", "LOG_LEVEL",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_RequiredToolPaths(t *testing.T) {
	t.Run("missing renderer path returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("TOOL_ENCODER_PATH", "/usr/bin/ffmpeg")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("missing encoder path returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("TOOL_TIMELINE_RENDERER_PATH", "/usr/bin/melt")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("both required paths present succeeds", func(t *testing.T) {
		clearEnv()
		t.Setenv("TOOL_TIMELINE_RENDERER_PATH", "/usr/bin/melt")
		t.Setenv("TOOL_ENCODER_PATH", "/usr/bin/ffmpeg")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/melt", cfg.TimelineRendererPath)
		assert.Equal(t, "/usr/bin/ffmpeg", cfg.EncoderPath)
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()
	t.Setenv("TOOL_TIMELINE_RENDERER_PATH", "/usr/bin/melt")
	t.Setenv("TOOL_ENCODER_PATH", "/usr/bin/ffmpeg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/renderqueue", cfg.TempDir)
	assert.Equal(t, 1, cfg.MaxConcurrentRenders)
	assert.Equal(t, 3, cfg.DefaultMaxRetries)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	t.Setenv("TOOL_TIMELINE_RENDERER_PATH", "/usr/bin/melt")
	t.Setenv("TOOL_ENCODER_PATH", "/usr/bin/ffmpeg")
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("MAX_CONCURRENT_RENDERS", "4")
	t.Setenv("DEFAULT_MAX_RETRIES", "5")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, 4, cfg.MaxConcurrentRenders)
	assert.Equal(t, 5, cfg.DefaultMaxRetries)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidIntegerDefaults(t *testing.T) {
	clearEnv()
	t.Setenv("TOOL_TIMELINE_RENDERER_PATH", "/usr/bin/melt")
	t.Setenv("TOOL_ENCODER_PATH", "/usr/bin/ffmpeg")
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing renderer path", Config{EncoderPath: "/bin/ffmpeg", MaxConcurrentRenders: 1}, true},
		{"missing encoder path", Config{TimelineRendererPath: "/bin/melt", MaxConcurrentRenders: 1}, true},
		{"non-positive concurrency", Config{TimelineRendererPath: "/bin/melt", EncoderPath: "/bin/ffmpeg", MaxConcurrentRenders: 0}, true},
		{"valid", Config{TimelineRendererPath: "/bin/melt", EncoderPath: "/bin/ffmpeg", MaxConcurrentRenders: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := Config{
		PreflightTimeoutMs:     2000,
		GraceStopHeavyMs:       3000,
		GraceStopAuxMs:         2000,
		ShutdownDrainMs:        5000,
		ProgressEventFloorMs:   100,
		ProgressPersistFloorMs: 1000,
	}

	assert.Equal(t, 2000, int(cfg.PreflightTimeout().Milliseconds()))
	assert.Equal(t, 3000, int(cfg.GraceStopHeavy().Milliseconds()))
	assert.Equal(t, 2000, int(cfg.GraceStopAux().Milliseconds()))
	assert.Equal(t, 5000, int(cfg.ShutdownDrain().Milliseconds()))
	assert.Equal(t, 100, int(cfg.ProgressEventFloor().Milliseconds()))
	assert.Equal(t, 1000, int(cfg.ProgressPersistFloor().Milliseconds()))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "local", cfg.Blob.Driver)
	assert.Equal(t, "mp3", cfg.FFmpeg.Format)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
	assert.Equal(t, "en", cfg.Transcription.Language)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 1500, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, int64(50), cfg.Server.MaxUploadMB)
	assert.Equal(t, time.Duration(0), cfg.Pipeline.RunTimeout())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INSIGHTS_LLM_PROVIDER", "anthropic")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "8081")
	t.Setenv("INSIGHTS_PIPELINE_RUN_TIMEOUT_SECS", "90")
	t.Setenv("USE_MOCK_TRANSCRIBE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.Transcription.APIKey)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.True(t, cfg.Transcription.Mock)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.RunTimeout())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("store:\n  driver: postgres\n  database_url: postgres://localhost/insights\nbatch:\n  concurrency: 7\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	v := viper.New()
	v.AddConfigPath(dir)
	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/insights", cfg.Store.DatabaseURL)
	assert.Equal(t, 7, cfg.Batch.Concurrency)
	assert.Equal(t, 20, cfg.Batch.RunsPerMinute)
}

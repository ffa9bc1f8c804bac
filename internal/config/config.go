package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Blob          BlobConfig          `yaml:"blob" mapstructure:"blob"`
	Scratch       ScratchConfig       `yaml:"scratch" mapstructure:"scratch"`
	FFmpeg        FFmpegConfig        `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Batch         BatchConfig         `yaml:"batch" mapstructure:"batch"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the record and project knowledge database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BlobConfig configures where uploaded recordings are kept.
type BlobConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	PublicBaseURL string `yaml:"public_base_url" mapstructure:"public_base_url"`
	FTPAddr       string `yaml:"ftp_addr" mapstructure:"ftp_addr"`
	FTPUser       string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword   string `yaml:"ftp_password" mapstructure:"ftp_password"`
	FTPDir        string `yaml:"ftp_dir" mapstructure:"ftp_dir"`
	FTPTimeoutSec int    `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
}

// ScratchConfig configures the directory for transient pipeline files.
type ScratchConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// FFmpegConfig configures the audio transcoder.
type FFmpegConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TranscriptionConfig configures the speech-to-text service.
type TranscriptionConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	APIKey          string `yaml:"api_key" mapstructure:"api_key"`
	Model           string `yaml:"model" mapstructure:"model"`
	Language        string `yaml:"language" mapstructure:"language"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetrySeconds int    `yaml:"max_retry_seconds" mapstructure:"max_retry_seconds"`
	Mock            bool   `yaml:"mock" mapstructure:"mock"`
}

// LLMConfig configures the language model that evaluates transcripts.
type LLMConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	Model           string  `yaml:"model" mapstructure:"model"`
	AnthropicKey    string  `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel  string  `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	MaxTokens       int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetrySeconds int     `yaml:"max_retry_seconds" mapstructure:"max_retry_seconds"`
}

// PipelineConfig configures a single analysis run.
type PipelineConfig struct {
	// RunTimeoutSecs bounds one run; 0 leaves runs unbounded.
	RunTimeoutSecs int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
}

// RunTimeout returns the per-run timeout, 0 when disabled.
func (p PipelineConfig) RunTimeout() time.Duration {
	if p.RunTimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(p.RunTimeoutSecs) * time.Second
}

// BatchConfig configures bulk reanalysis.
type BatchConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	RunsPerMinute int `yaml:"runs_per_minute" mapstructure:"runs_per_minute"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int64    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INSIGHTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Well-known variables used by the hosted deployment.
	binds := map[string][]string{
		"store.database_url":    {"INSIGHTS_STORE_DATABASE_URL", "DATABASE_URL"},
		"transcription.api_key": {"INSIGHTS_TRANSCRIPTION_API_KEY", "OPENAI_API_KEY"},
		"llm.api_key":           {"INSIGHTS_LLM_API_KEY", "OPENAI_API_KEY"},
		"llm.anthropic_key":     {"INSIGHTS_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"},
		"transcription.mock":    {"INSIGHTS_TRANSCRIPTION_MOCK", "USE_MOCK_TRANSCRIBE"},
		"server.port":           {"INSIGHTS_SERVER_PORT", "PORT"},
		"log.level":             {"INSIGHTS_LOG_LEVEL", "LOG_LEVEL"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "data/insights.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.dir", "data/recordings")
	v.SetDefault("blob.public_base_url", "http://localhost:5000/recordings")
	v.SetDefault("blob.ftp_dir", "recordings")
	v.SetDefault("blob.ftp_timeout_secs", 30)
	v.SetDefault("scratch.dir", filepath.Join(os.TempDir(), "sales-call-insights"))
	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffmpeg.format", "mp3")
	v.SetDefault("transcription.base_url", "https://api.openai.com/v1")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.language", "en")
	v.SetDefault("transcription.timeout_secs", 300)
	v.SetDefault("transcription.max_retry_seconds", 30)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.max_tokens", 1500)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout_secs", 120)
	v.SetDefault("llm.max_retry_seconds", 45)
	v.SetDefault("pipeline.run_timeout_secs", 0)
	v.SetDefault("batch.concurrency", 3)
	v.SetDefault("batch.runs_per_minute", 20)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

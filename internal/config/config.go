package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	// Import godotenv for loading .env files
	_ "github.com/joho/godotenv/autoload"
)

// Constants for program configuration
const (
	MaxWorkers = 4 // Key-frames extracted at once

	MiB = 1024 * 1024

	// DefaultCompressThreshold sits just under the 20 MiB inline request limit.
	DefaultCompressThreshold int64 = 19 * MiB
	DefaultMaxSourceSize     int64 = 500 * MiB
)

// Remix script backends.
const (
	ScriptBackendGemini = "gemini"
	ScriptBackendOllama = "ollama"
)

type Config struct {
	Gemini    GeminiConfig  `json:"gemini"`
	Speech    SpeechConfig  `json:"speech"`
	Script    ScriptConfig  `json:"script"`
	Video     VideoConfig   `json:"video"`
	OutputDir string        `json:"output_dir"`
	Progress  time.Duration `json:"progress_interval"`
}

type GeminiConfig struct {
	APIKey string `json:"-"`
	Model  string `json:"model"`
}

type SpeechConfig struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	Voice   string `json:"voice"`
}

// ScriptConfig selects the model that writes remix scripts.
type ScriptConfig struct {
	Backend     string `json:"backend"` // gemini or ollama
	OllamaModel string `json:"ollama_model"`
}

type VideoConfig struct {
	FFmpegPath        string        `json:"ffmpeg_path"`
	CompressThreshold int64         `json:"compress_threshold"` // in bytes
	InlineLimit       int64         `json:"inline_limit"`       // in bytes
	MaxSourceSize     int64         `json:"max_source_size"`    // in bytes
	FrameTimeout      time.Duration `json:"frame_timeout"`
	Workers           int           `json:"workers"`
}

// Load reads the configuration from the environment and a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Speech: SpeechConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("TTS_MODEL", "tts-1"),
			Voice:   getEnv("TTS_VOICE", "alloy"),
		},
		Script: ScriptConfig{
			Backend:     getEnv("REMIX_SCRIPT_BACKEND", ScriptBackendGemini),
			OllamaModel: getEnv("OLLAMA_MODEL", "llama3.2"),
		},
		Video: VideoConfig{
			FFmpegPath:        getEnv("VIDEOLENS_FFMPEG", "ffmpeg"),
			CompressThreshold: getInt64Env("VIDEOLENS_COMPRESS_THRESHOLD", DefaultCompressThreshold),
			MaxSourceSize:     getInt64Env("VIDEOLENS_MAX_SOURCE_SIZE", DefaultMaxSourceSize),
			FrameTimeout:      getDurationEnv("VIDEOLENS_FRAME_TIMEOUT", 5*time.Second),
			Workers:           getIntEnv("VIDEOLENS_WORKERS", MaxWorkers),
		},
		OutputDir: getEnv("VIDEOLENS_OUTPUT_DIR", "output"),
		Progress:  getDurationEnv("VIDEOLENS_PROGRESS_INTERVAL", 250*time.Millisecond),
	}

	// The inline limit is the compression trigger; only the selection
	// ceiling is configured separately.
	cfg.Video.InlineLimit = cfg.Video.CompressThreshold

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.Video.CompressThreshold <= 0 {
		return errors.New("VIDEOLENS_COMPRESS_THRESHOLD must be positive")
	}
	if c.Video.MaxSourceSize <= 0 {
		return errors.New("VIDEOLENS_MAX_SOURCE_SIZE must be positive")
	}
	if c.Video.Workers < 1 {
		return errors.New("VIDEOLENS_WORKERS must be at least 1")
	}
	if c.Video.FrameTimeout <= 0 {
		return errors.New("VIDEOLENS_FRAME_TIMEOUT must be positive")
	}
	if c.Progress <= 0 {
		return errors.New("VIDEOLENS_PROGRESS_INTERVAL must be positive")
	}
	if c.Script.Backend != ScriptBackendGemini && c.Script.Backend != ScriptBackendOllama {
		return fmt.Errorf("REMIX_SCRIPT_BACKEND must be %s or %s, got %q", ScriptBackendGemini, ScriptBackendOllama, c.Script.Backend)
	}
	if c.OutputDir == "" {
		return errors.New("VIDEOLENS_OUTPUT_DIR must not be empty")
	}
	return nil
}

// RequireGemini reports whether analysis can run.
func (c *Config) RequireGemini() error {
	if c.Gemini.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required for analysis")
	}
	return nil
}

// RequireScript reports whether remix scripts can be written.
func (c *Config) RequireScript() error {
	if c.Script.Backend == ScriptBackendOllama {
		return nil
	}
	return c.RequireGemini()
}

// RequireSpeech reports whether a remix can be voiced.
func (c *Config) RequireSpeech() error {
	if c.Speech.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required for audio remixes")
	}
	return nil
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"GEMINI_API_KEY", "GEMINI_MODEL", "OPENAI_API_KEY", "OPENAI_BASE_URL", "TTS_MODEL", "TTS_VOICE",
	"REMIX_SCRIPT_BACKEND", "OLLAMA_MODEL",
	"VIDEOLENS_OUTPUT_DIR", "VIDEOLENS_COMPRESS_THRESHOLD", "VIDEOLENS_MAX_SOURCE_SIZE",
	"VIDEOLENS_FRAME_TIMEOUT", "VIDEOLENS_FFMPEG", "VIDEOLENS_WORKERS", "VIDEOLENS_PROGRESS_INTERVAL",
}

func clearEnv(t *testing.T) {
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "tts-1", cfg.Speech.Model)
	assert.Equal(t, "alloy", cfg.Speech.Voice)
	assert.Equal(t, ScriptBackendGemini, cfg.Script.Backend)
	assert.Equal(t, "llama3.2", cfg.Script.OllamaModel)
	assert.Equal(t, "ffmpeg", cfg.Video.FFmpegPath)
	assert.Equal(t, DefaultCompressThreshold, cfg.Video.CompressThreshold)
	assert.Equal(t, cfg.Video.CompressThreshold, cfg.Video.InlineLimit)
	assert.Equal(t, DefaultMaxSourceSize, cfg.Video.MaxSourceSize)
	assert.Equal(t, 5*time.Second, cfg.Video.FrameTimeout)
	assert.Equal(t, MaxWorkers, cfg.Video.Workers)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Progress)

	assert.Error(t, cfg.RequireGemini())
	assert.Error(t, cfg.RequireScript())
	assert.Error(t, cfg.RequireSpeech())
}

func TestLoadOllamaScripts(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMIX_SCRIPT_BACKEND", "ollama")
	t.Setenv("OLLAMA_MODEL", "mistral")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ScriptBackendOllama, cfg.Script.Backend)
	assert.Equal(t, "mistral", cfg.Script.OllamaModel)
	assert.NoError(t, cfg.RequireScript(), "local scripts need no Gemini key")
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("VIDEOLENS_COMPRESS_THRESHOLD", "1048576")
	t.Setenv("VIDEOLENS_FRAME_TIMEOUT", "2s")
	t.Setenv("VIDEOLENS_WORKERS", "8")
	t.Setenv("VIDEOLENS_PROGRESS_INTERVAL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.EqualValues(t, 1048576, cfg.Video.CompressThreshold)
	assert.EqualValues(t, 1048576, cfg.Video.InlineLimit)
	assert.Equal(t, 2*time.Second, cfg.Video.FrameTimeout)
	assert.Equal(t, 8, cfg.Video.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Progress, "unparsable values fall back to defaults")

	assert.NoError(t, cfg.RequireGemini())
	assert.NoError(t, cfg.RequireSpeech())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"threshold", map[string]string{"VIDEOLENS_COMPRESS_THRESHOLD": "-1"}, "VIDEOLENS_COMPRESS_THRESHOLD"},
		{"max size", map[string]string{"VIDEOLENS_MAX_SOURCE_SIZE": "0"}, "VIDEOLENS_MAX_SOURCE_SIZE"},
		{"workers", map[string]string{"VIDEOLENS_WORKERS": "0"}, "VIDEOLENS_WORKERS"},
		{"frame timeout", map[string]string{"VIDEOLENS_FRAME_TIMEOUT": "-1s"}, "VIDEOLENS_FRAME_TIMEOUT"},
		{"script backend", map[string]string{"REMIX_SCRIPT_BACKEND": "claude"}, "REMIX_SCRIPT_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

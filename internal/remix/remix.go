// Package remix turns an analysis document into a short narrated audio
// recap: a script written by Gemini or a local Ollama model, voiced by
// OpenAI text to speech.
package remix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/bdougie/videolens/internal/analyzer"
	"github.com/bdougie/videolens/internal/models"
)

const scriptSystemPrompt = "You are a podcast host who retells video analyses as lively, spoken recaps."

const scriptPrompt = `Rewrite the following video analysis as a narration script of roughly 60 to 90 seconds.
Speak directly to the listener in the present tense. Walk through the key moments in order,
mention timestamps naturally ("about two minutes in"), and close with the single most important takeaway.
Return plain prose only: no markdown, headings, bullet points or stage directions.

Analysis:
`

// ErrEmptyDocument is returned when there is nothing to remix.
var ErrEmptyDocument = errors.New("remix: analysis document is empty")

// ScriptWriter writes a narration script from an analysis document.
type ScriptWriter interface {
	WriteScript(ctx context.Context, document string) (string, error)
}

// Synthesizer voices a script. It returns the audio and its format.
type Synthesizer interface {
	Synthesize(ctx context.Context, script string) ([]byte, string, error)
}

// Service produces remixes.
type Service struct {
	writer ScriptWriter
	voice  Synthesizer
	logger *slog.Logger
}

// New creates a remix service.
func New(writer ScriptWriter, voice Synthesizer, logger *slog.Logger) *Service {
	return &Service{writer: writer, voice: voice, logger: logger}
}

// Remix writes and voices a recap of document.
func (s *Service) Remix(ctx context.Context, document string) (*models.Remix, error) {
	if strings.TrimSpace(document) == "" {
		return nil, ErrEmptyDocument
	}

	script, err := s.writer.WriteScript(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("failed to write remix script: %w", err)
	}
	s.logger.Debug("remix script written", "chars", len(script))

	audio, format, err := s.voice.Synthesize(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize remix audio: %w", err)
	}
	s.logger.Info("remix ready", "format", format, "bytes", len(audio))

	return &models.Remix{Script: script, Audio: audio, Format: format}, nil
}

// GeminiWriter writes scripts with a text-only Gemini request.
type GeminiWriter struct {
	factory analyzer.ModelFactory
}

// NewGeminiWriter creates a script writer on top of a shared model factory.
func NewGeminiWriter(factory analyzer.ModelFactory) *GeminiWriter {
	return &GeminiWriter{factory: factory}
}

func (w *GeminiWriter) WriteScript(ctx context.Context, document string) (string, error) {
	model, err := w.factory.Model(ctx, scriptSystemPrompt)
	if err != nil {
		return "", err
	}
	resp, err := model.GenerateContent(ctx, genai.Text(scriptPrompt+document))
	if err != nil {
		return "", err
	}
	script, err := analyzer.ResponseText(resp)
	if err != nil {
		return "", err
	}
	return cleanScript(script), nil
}

// cleanScript strips markdown the model adds despite the instructions.
func cleanScript(script string) string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#*-• ")
		line = strings.ReplaceAll(line, "**", "")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

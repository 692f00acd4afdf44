package remix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
)

// The provider always talks to the local daemon on its default port.
const (
	ollamaHost = "http://localhost"
	ollamaPort = 11434
)

// DefaultOllamaModel is used when no local model is configured.
const DefaultOllamaModel = "llama3.2"

// A script needs one answer; a few extra steps cover empty replies.
const ollamaMaxSteps = 4

type runner interface {
	Run(ctx context.Context, opts ...agent.RunOptionFunc) (*agent.AgentRunAggregator, error)
}

// OllamaWriter writes scripts with a local model served by Ollama.
type OllamaWriter struct {
	model   string
	tagsURL string
	logger  *slog.Logger
	connect func(ctx context.Context) (runner, error)
}

// NewOllamaWriter creates a script writer for a local Ollama model.
func NewOllamaWriter(model string, logger *slog.Logger) *OllamaWriter {
	if model == "" {
		model = DefaultOllamaModel
	}
	w := &OllamaWriter{
		model:   model,
		tagsURL: fmt.Sprintf("%s:%d/api/tags", ollamaHost, ollamaPort),
		logger:  logger,
	}
	w.connect = w.newAgent
	return w
}

// WriteScript runs a fresh agent per script; agents keep conversation
// memory between runs.
func (w *OllamaWriter) WriteScript(ctx context.Context, document string) (string, error) {
	a, err := w.connect(ctx)
	if err != nil {
		return "", err
	}

	prompt := scriptSystemPrompt + "\n\n" + scriptPrompt + document
	agg, err := a.Run(ctx, agent.WithInput(prompt))
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}

	msg := agg.Pop()
	if msg == nil || msg.Content == "" {
		return "", errors.New("ollama returned an empty script")
	}
	return cleanScript(msg.Content), nil
}

func (w *OllamaWriter) newAgent(ctx context.Context) (runner, error) {
	if err := w.ping(ctx); err != nil {
		return nil, err
	}

	log := logr.FromSlogHandler(w.logger.Handler())
	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  &log,
		BaseURL: ollamaHost,
		Port:    ollamaPort,
	})
	if err := provider.UseModel(ctx, &core.Model{ID: w.model}); err != nil {
		return nil, fmt.Errorf("failed to select ollama model %s: %w", w.model, err)
	}

	return agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithLogger(&log),
		bootstrap.WithMaxSteps(ollamaMaxSteps),
	)
}

// ping checks that the Ollama daemon is running.
func (w *OllamaWriter) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.tagsURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not running: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama is not running: unexpected status %s", resp.Status)
	}
	return nil
}

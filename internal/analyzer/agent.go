package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrNoAPIKey is returned when the client is used without credentials.
var ErrNoAPIKey = errors.New("GEMINI_API_KEY is not set")

// Model generates content; *genai.GenerativeModel satisfies it.
type Model interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// ModelFactory hands out configured models.
type ModelFactory interface {
	Model(ctx context.Context, system string) (Model, error)
}

type backend interface {
	GenerativeModel(name string) *genai.GenerativeModel
	Close() error
}

// Client is a process scoped Gemini connection. It dials on first use and
// can be reopened after Close.
type Client struct {
	apiKey string
	model  string
	logger *slog.Logger
	dial   func(ctx context.Context) (backend, error)

	mu      sync.Mutex
	backend backend
}

// NewClient creates an unconnected client.
func NewClient(apiKey, model string, logger *slog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		apiKey: apiKey,
		model:  model,
		logger: logger,
	}
	c.dial = func(ctx context.Context) (backend, error) {
		if c.apiKey == "" {
			return nil, ErrNoAPIKey
		}
		return genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	}
	return c
}

// Model returns the configured model with the given system instruction,
// connecting first if needed.
func (c *Client) Model(ctx context.Context, system string) (Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		c.logger.Debug("connecting to gemini", "model", c.model)
		b, err := c.dial(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		c.backend = b
	}

	model := c.backend.GenerativeModel(c.model)
	model.SetTemperature(0.4)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return model, nil
}

// Name is the model name requests are sent to.
func (c *Client) Name() string {
	return c.model
}

// Close releases the connection. The next Model call reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return nil
	}
	err := c.backend.Close()
	c.backend = nil
	return err
}

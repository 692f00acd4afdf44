// Package analyzer sends videos to Gemini and returns the markdown analysis
// document it writes.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/bdougie/videolens/internal/models"
	"github.com/bdougie/videolens/internal/parser"
)

const systemPrompt = "You are a meticulous video analyst. You watch the whole video, listen to the audio " +
	"track and report what happens in chronological order with accurate timestamps."

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("no response content received from model")

// Analyzer asks a multimodal model to analyze a video.
type Analyzer struct {
	factory  ModelFactory
	template parser.Template
	logger   *slog.Logger
}

// New creates an Analyzer that prompts for the current document template.
func New(factory ModelFactory, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		factory:  factory,
		template: parser.Current,
		logger:   logger,
	}
}

// Analyze sends the video inline with the analysis prompt.
func (a *Analyzer) Analyze(ctx context.Context, payload models.Payload, obs models.Observer) (string, error) {
	if obs == nil {
		obs = models.NopObserver{}
	}

	obs.OnStatus("Initializing model...")
	model, err := a.factory.Model(ctx, systemPrompt)
	if err != nil {
		return "", err
	}

	data, err := payload.Bytes()
	if err != nil {
		return "", fmt.Errorf("invalid video payload: %w", err)
	}

	obs.OnStatus("Analyzing video...")
	a.logger.Info("requesting analysis", "mime", payload.MIMEType, "bytes", len(data))

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: payload.MIMEType, Data: data},
		genai.Text(a.template.Prompt()),
	)
	if err != nil {
		return "", fmt.Errorf("analysis request failed: %w", err)
	}

	content, err := ResponseText(resp)
	if err != nil {
		return "", err
	}
	a.logger.Debug("analysis received", "chars", len(content))
	return content, nil
}

// ResponseText joins the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("request blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
			return "", fmt.Errorf("model stopped without content: %s", candidate.FinishReason)
		}
		return "", ErrEmptyResponse
	}
	return content, nil
}

package remix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// maxSpeechInput is the longest input the speech endpoint accepts.
const maxSpeechInput = 4096

// ErrNoAPIKey is returned when speech is requested without credentials.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is not set")

type speechAPI interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Speech synthesizes mp3 narration through the OpenAI audio API.
type Speech struct {
	client speechAPI
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

// NewSpeech creates a synthesizer. baseURL may point at any
// OpenAI compatible endpoint; empty keeps the default.
func NewSpeech(apiKey, baseURL, model, voice string) (*Speech, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	s := &Speech{
		client: openai.NewClientWithConfig(clientConfig),
		model:  openai.TTSModel1,
		voice:  openai.VoiceAlloy,
	}
	if model != "" {
		s.model = openai.SpeechModel(model)
	}
	if voice != "" {
		s.voice = openai.SpeechVoice(voice)
	}
	return s, nil
}

// Synthesize voices script as mp3. Long scripts are split into chunks that
// are synthesized concurrently and joined in order.
func (s *Speech) Synthesize(ctx context.Context, script string) ([]byte, string, error) {
	chunks := splitScript(script, maxSpeechInput)
	if len(chunks) == 0 {
		return nil, "", errors.New("script is empty")
	}

	audio := make([][]byte, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, chunk := range chunks {
		g.Go(func() error {
			data, err := s.speak(ctx, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			audio[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	var out []byte
	for _, data := range audio {
		out = append(out, data...)
	}
	return out, string(openai.SpeechResponseFormatMp3), nil
}

func (s *Speech) speak(ctx context.Context, input string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          input,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}
	return data, nil
}

// splitScript breaks script into pieces of at most limit bytes, preferring
// paragraph, then sentence, then word boundaries.
func splitScript(script string, limit int) []string {
	script = strings.TrimSpace(script)
	var chunks []string
	for len(script) > limit {
		cut := lastBoundary(script[:limit])
		chunks = append(chunks, strings.TrimSpace(script[:cut]))
		script = strings.TrimSpace(script[cut:])
	}
	if script != "" {
		chunks = append(chunks, script)
	}
	return chunks
}

func lastBoundary(s string) int {
	for _, sep := range []string{"\n\n", "\n", ". ", "! ", "? ", " "} {
		if i := strings.LastIndex(s, sep); i > 0 {
			return i + len(sep)
		}
	}
	return len(s)
}

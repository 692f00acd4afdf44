// Package session owns the currently selected video: its pipeline, parsed
// analysis and key-frames. Sessions share no state with each other.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bdougie/videolens/internal/extractor"
	"github.com/bdougie/videolens/internal/models"
	"github.com/bdougie/videolens/internal/parser"
	"github.com/bdougie/videolens/internal/pipeline"
)

var (
	// ErrNoAsset is returned when an operation needs a selected video.
	ErrNoAsset = errors.New("session: no video selected")

	// ErrNoAnalysis is returned before a run has completed.
	ErrNoAnalysis = errors.New("session: no analysis available")
)

// Option configures a Session.
type Option func(*Session)

// WithMaxSourceSize sets the largest file Select accepts.
func WithMaxSourceSize(n int64) Option {
	return func(s *Session) { s.maxSize = n }
}

// WithPipelineOptions are applied to every pipeline the session creates.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(s *Session) { s.pipelineOpts = append(s.pipelineOpts, opts...) }
}

// WithListener follows every pipeline the session creates.
func WithListener(l pipeline.Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithFrameWorkers sets key-frame extraction concurrency.
func WithFrameWorkers(n int) Option {
	return func(s *Session) { s.workers = n }
}

// Session processes one selected video at a time.
type Session struct {
	compressor pipeline.Compressor
	analyzer   pipeline.Analyzer
	frames     *extractor.Cache
	memo       parser.Memo
	logger     *slog.Logger

	maxSize      int64
	workers      int
	listener     pipeline.Listener
	pipelineOpts []pipeline.Option

	mu      sync.Mutex
	asset   *models.VideoAsset
	pipe    *pipeline.Pipeline
	active  bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// New creates an empty session.
func New(compressor pipeline.Compressor, analyzer pipeline.Analyzer, source extractor.FrameSource, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		compressor: compressor,
		analyzer:   analyzer,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.frames = extractor.NewCache(source, logger, extractor.WithWorkers(s.workers))
	return s
}

// Select validates path and makes it the current video, discarding the
// previous one. An invalid file leaves the session unchanged.
func (s *Session) Select(path string) (*models.VideoAsset, error) {
	size, mimeType, err := Validate(path, s.maxSize)
	if err != nil {
		return nil, err
	}

	asset, err := models.NewVideoAsset(path, mimeType, size)
	if err != nil {
		return nil, err
	}

	s.Clear()

	opts := append([]pipeline.Option(nil), s.pipelineOpts...)
	if s.listener != nil {
		opts = append(opts, pipeline.WithListener(s.listener))
	}

	s.mu.Lock()
	s.asset = asset
	s.pipe = pipeline.New(asset, s.compressor, s.analyzer, s.logger.With("asset", asset.ID), opts...)
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("video selected", "name", asset.Name, "type", mimeType, "size", size)
	return asset, nil
}

// Start runs the pipeline in the background. It fails with
// pipeline.ErrBusy while a run is active.
func (s *Session) Start(ctx context.Context) error {
	return s.launch(ctx, models.Idle, (*pipeline.Pipeline).Run)
}

// Retry reruns a failed pipeline from the original file.
func (s *Session) Retry(ctx context.Context) error {
	return s.launch(ctx, models.Error, (*pipeline.Pipeline).Retry)
}

func (s *Session) launch(ctx context.Context, from models.ProcessingState, run func(*pipeline.Pipeline, context.Context) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipe == nil {
		return ErrNoAsset
	}
	if s.active {
		return pipeline.ErrBusy
	}
	if state := s.pipe.State(); state != from {
		return fmt.Errorf("%w: cannot start from %s", pipeline.ErrInvalidTransition, state)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	pipe := s.pipe

	s.active = true
	s.cancel = cancel
	s.done = done
	s.lastErr = nil

	go func() {
		defer close(done)
		defer cancel()

		_, err := run(pipe, ctx)

		s.mu.Lock()
		s.active = false
		s.lastErr = err
		s.mu.Unlock()
	}()
	return nil
}

// Wait blocks until the current run finishes and returns its error.
func (s *Session) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Active reports whether a run is in flight.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State is the current pipeline state, Idle when nothing is selected.
func (s *Session) State() models.ProcessingState {
	s.mu.Lock()
	pipe := s.pipe
	s.mu.Unlock()

	if pipe == nil {
		return models.Idle
	}
	return pipe.State()
}

// Pipeline is the current pipeline, nil when nothing is selected.
func (s *Session) Pipeline() *pipeline.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipe
}

// Asset is the selected video, nil when nothing is selected.
func (s *Session) Asset() *models.VideoAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

// Document is the raw analysis of a completed run.
func (s *Session) Document() (string, error) {
	s.mu.Lock()
	pipe := s.pipe
	s.mu.Unlock()

	if pipe == nil {
		return "", ErrNoAsset
	}
	if pipe.State() != models.Complete {
		return "", ErrNoAnalysis
	}
	return pipe.Document(), nil
}

// Analysis parses the completed document. It returns
// parser.ErrUnstructured when the caller should show the raw text instead.
func (s *Session) Analysis() (*models.ParsedAnalysis, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, err
	}
	return s.memo.Parse(doc)
}

// LoadFrames starts extracting a key-frame for every parsed segment. The
// asset, its document and the fill are taken together so a concurrent
// Select cannot pair one video's segments with another video's file.
func (s *Session) LoadFrames(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipe == nil || s.asset == nil {
		return ErrNoAsset
	}
	if s.pipe.State() != models.Complete {
		return ErrNoAnalysis
	}
	parsed, err := s.memo.Parse(s.pipe.Document())
	if err != nil {
		return err
	}

	s.frames.Fill(ctx, s.asset.Working(), parsed.Segments)
	return nil
}

// Frames returns each segment's key-frame slot in document order.
func (s *Session) Frames() []models.FrameSlot {
	return s.frames.Slots()
}

// WaitFrames blocks until queued key-frame extractions finish.
func (s *Session) WaitFrames() {
	s.frames.Wait()
}

// Clear cancels any run, drops pending key-frames and releases the video.
func (s *Session) Clear() {
	s.mu.Lock()
	cancel, done, asset := s.cancel, s.done, s.asset
	s.cancel, s.done, s.asset, s.pipe = nil, nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	s.frames.Invalidate()
	s.memo.Reset()

	if asset != nil {
		if err := asset.Release(); err != nil {
			s.logger.Warn("failed to release video", "name", asset.Name, "error", err)
		}
	}
}

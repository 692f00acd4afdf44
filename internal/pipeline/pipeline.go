// Package pipeline drives a video through compression, encoding and
// analysis, exposing its state and a derived progress percentage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bdougie/videolens/internal/models"
)

const (
	// DefaultCompressThreshold is the largest video sent without compression.
	DefaultCompressThreshold int64 = 19 * 1024 * 1024

	// DefaultInlineLimit is the largest payload the analysis request accepts.
	DefaultInlineLimit int64 = 19 * 1024 * 1024

	// DefaultTickInterval paces the cosmetic progress ramps.
	DefaultTickInterval = 250 * time.Millisecond

	compressedName = "compressed.mp4"
)

// Observer receives updates from collaborators.
type Observer = models.Observer

// Compressor re-encodes src into dst.
type Compressor interface {
	Compress(ctx context.Context, src, dst string, obs Observer) error
}

// Analyzer turns a video payload into an analysis document.
type Analyzer interface {
	Analyze(ctx context.Context, payload models.Payload, obs Observer) (string, error)
}

// Listener follows a pipeline from the outside.
type Listener interface {
	OnTransition(from, to State, err error)
	OnProgress(percent int)
	OnStatus(message string)
}

type nopListener struct{}

func (nopListener) OnTransition(State, State, error) {}
func (nopListener) OnProgress(int)                   {}
func (nopListener) OnStatus(string)                  {}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCompressThreshold sets the size above which videos are compressed.
func WithCompressThreshold(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.threshold = n
		}
	}
}

// WithInlineLimit sets the largest payload handed to the analyzer.
func WithInlineLimit(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.inlineLimit = n
		}
	}
}

// WithTickInterval sets how often progress ramps advance.
func WithTickInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithListener registers the listener notified of every change.
func WithListener(l Listener) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.listener = l
		}
	}
}

// Pipeline processes a single asset. It allows one active run at a time.
type Pipeline struct {
	asset      *models.VideoAsset
	compressor Compressor
	analyzer   Analyzer
	listener   Listener
	logger     *slog.Logger

	threshold   int64
	inlineLimit int64
	interval    time.Duration

	mu       sync.Mutex
	state    State
	running  bool
	err      error
	document string
	progress Progress

	// serialises listener callbacks so they arrive in order
	emitMu sync.Mutex
}

// New creates an idle pipeline for asset.
func New(asset *models.VideoAsset, compressor Compressor, analyzer Analyzer, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		asset:       asset,
		compressor:  compressor,
		analyzer:    analyzer,
		listener:    nopListener{},
		logger:      logger,
		threshold:   DefaultCompressThreshold,
		inlineLimit: DefaultInlineLimit,
		interval:    DefaultTickInterval,
		state:       models.Idle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes the asset from Idle and returns the analysis document.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	if err := p.begin(models.Idle); err != nil {
		return "", err
	}
	return p.execute(ctx)
}

// Retry restarts a failed run from the original source file.
func (p *Pipeline) Retry(ctx context.Context) (string, error) {
	if err := p.begin(models.Error); err != nil {
		return "", err
	}
	p.asset.Reset()
	return p.execute(ctx)
}

func (p *Pipeline) begin(from State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrBusy
	}
	if p.state != from {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, p.state)
	}
	p.running = true
	p.err = nil
	return nil
}

func (p *Pipeline) execute(ctx context.Context) (string, error) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	size := p.asset.WorkingSize()
	if size > p.threshold {
		if err := p.compress(ctx); err != nil {
			return "", err
		}
	}

	if err := p.transition(models.Encoding, nil); err != nil {
		return "", err
	}
	stop := p.startTicker()
	defer stop()

	payload, err := Encode(p.asset.Working(), p.asset.MIMEType)
	if err != nil {
		stop()
		return "", p.fail(stageError(models.Encoding, "encoding failed", err))
	}
	p.logger.Debug("video encoded", "bytes", payload.Size, "encoded", len(payload.Encoded))

	if err := p.transition(models.Analyzing, nil); err != nil {
		return "", err
	}
	document, err := p.analyzer.Analyze(ctx, payload, stageObserver{p: p})
	stop()
	if err != nil {
		return "", p.fail(stageError(models.Analyzing, "", err))
	}

	p.mu.Lock()
	p.document = document
	p.mu.Unlock()

	if err := p.transition(models.Complete, nil); err != nil {
		return "", err
	}
	return document, nil
}

func (p *Pipeline) compress(ctx context.Context) error {
	if err := p.transition(models.Compressing, nil); err != nil {
		return err
	}

	dst := p.asset.DerivativePath(compressedName)
	p.logger.Info("compressing video", "src", p.asset.Working(), "size", p.asset.WorkingSize())
	if err := p.compressor.Compress(ctx, p.asset.Working(), dst, stageObserver{p: p}); err != nil {
		return p.fail(stageError(models.Compressing, "compression failed", err))
	}

	info, err := os.Stat(dst)
	if err != nil {
		return p.fail(stageError(models.Compressing, "compression failed", err))
	}
	if err := p.asset.Replace(dst, info.Size()); err != nil {
		return p.fail(stageError(models.Compressing, "compression failed", err))
	}
	p.logger.Info("video compressed", "size", info.Size(), "original", p.asset.OriginalSize())

	if info.Size() > p.inlineLimit {
		return p.fail(&StageError{
			Stage: models.Compressing,
			Err:   fmt.Errorf("compressed video still exceeds inline limit (%d > %d bytes)", info.Size(), p.inlineLimit),
		})
	}
	return nil
}

func (p *Pipeline) fail(err *StageError) error {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()

	p.logger.Error("pipeline failed", "stage", err.Stage, "error", err.Err)
	if terr := p.transition(models.Error, err); terr != nil {
		return errors.Join(err, terr)
	}
	return err
}

func (p *Pipeline) transition(to State, cause error) error {
	p.mu.Lock()
	from := p.state
	if !CanTransition(from, to) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	p.state = to
	percent := p.progress.Enter(to)
	p.mu.Unlock()

	p.logger.Debug("state changed", "from", from, "to", to)

	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.listener.OnTransition(from, to, cause)
	p.listener.OnProgress(percent)
	return nil
}

func (p *Pipeline) startTicker() func() {
	ticker := time.NewTicker(p.interval)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C:
				p.tick()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			wg.Wait()
		})
	}
}

func (p *Pipeline) tick() {
	p.mu.Lock()
	if p.state != models.Encoding && p.state != models.Analyzing {
		p.mu.Unlock()
		return
	}
	percent := p.progress.Tick()
	p.mu.Unlock()

	p.emitProgress(percent)
}

func (p *Pipeline) emitProgress(percent int) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.listener.OnProgress(percent)
}

// stageObserver forwards collaborator updates into the pipeline.
type stageObserver struct {
	p *Pipeline
}

func (o stageObserver) OnProgress(percent int) {
	o.p.mu.Lock()
	if o.p.state != models.Compressing {
		o.p.mu.Unlock()
		return
	}
	value := o.p.progress.Report(percent)
	o.p.mu.Unlock()

	o.p.emitProgress(value)
}

func (o stageObserver) OnStatus(message string) {
	o.p.emitMu.Lock()
	defer o.p.emitMu.Unlock()
	o.p.listener.OnStatus(message)
}

// State is the current processing state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Running reports whether a run is in flight.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Progress is the current percentage in [0, 100].
func (p *Pipeline) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress.Value()
}

// Err is the failure that put the pipeline in Error, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Document is the analysis document of a completed run.
func (p *Pipeline) Document() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.document
}

// Asset is the video this pipeline processes.
func (p *Pipeline) Asset() *models.VideoAsset {
	return p.asset
}

package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	vidio "github.com/AlexEidt/Vidio"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTimeout bounds metadata, seek and render for a single frame.
	DefaultTimeout = 5 * time.Second

	// DefaultQuality is the JPEG quality of extracted key-frames.
	DefaultQuality = 85

	// endEpsilon keeps seeks clear of the end of the stream.
	endEpsilon = 0.1
)

// Metadata describes the video stream of a source.
type Metadata struct {
	Duration float64
	FPS      float64
	Frames   int
}

// Prober reads stream metadata.
type Prober interface {
	Probe(src string) (Metadata, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(src string) (Metadata, error)

func (f ProberFunc) Probe(src string) (Metadata, error) { return f(src) }

// VidioProber reads metadata with ffprobe through Vidio. Frames are not
// read through Vidio: its readers cannot be cancelled and they install a
// process-wide interrupt handler.
var VidioProber Prober = ProberFunc(func(src string) (Metadata, error) {
	v, err := vidio.NewVideo(src)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open video '%s': %w", src, err)
	}
	defer v.Close()
	return Metadata{Duration: v.Duration(), FPS: v.FPS(), Frames: v.Frames()}, nil
})

// Renderer decodes the single frame shown at offset seconds. It must stop
// and release everything it started once ctx is done.
type Renderer interface {
	Render(ctx context.Context, src string, offset float64) (image.Image, error)
}

// FFmpegRenderer seeks with ffmpeg and reads one PNG frame from its stdout.
type FFmpegRenderer struct {
	Path string
}

func (r FFmpegRenderer) Render(ctx context.Context, src string, offset float64) (image.Image, error) {
	cmd := exec.CommandContext(ctx, r.Path,
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "png",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame at %.3fs", offset)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

type probeResult struct {
	size    int64
	modTime time.Time
	meta    Metadata
	err     error
}

// Extractor captures still images from a video at given offsets.
type Extractor struct {
	prober   Prober
	renderer Renderer
	timeout  time.Duration
	quality  int
	logger   *slog.Logger

	mu     sync.Mutex
	probed map[string]probeResult
	probes singleflight.Group
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithProber replaces the Vidio metadata reader.
func WithProber(p Prober) Option {
	return func(e *Extractor) { e.prober = p }
}

// WithRenderer replaces the ffmpeg frame renderer.
func WithRenderer(r Renderer) Option {
	return func(e *Extractor) { e.renderer = r }
}

// WithFFmpeg sets the ffmpeg binary used to render frames.
func WithFFmpeg(path string) Option {
	return func(e *Extractor) {
		if path != "" {
			e.renderer = FFmpegRenderer{Path: path}
		}
	}
}

// WithTimeout sets the hard per-frame timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(e *Extractor) {
		if q >= 1 && q <= 100 {
			e.quality = q
		}
	}
}

// New creates an Extractor.
func New(logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		prober:   VidioProber,
		renderer: FFmpegRenderer{Path: "ffmpeg"},
		timeout:  DefaultTimeout,
		quality:  DefaultQuality,
		logger:   logger,
		probed:   make(map[string]probeResult),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFrame returns a JPEG of the frame shown at seconds, or nil when the
// frame cannot be produced within the timeout. It never returns an error:
// a missing frame is a terminal, non-retryable outcome for the caller.
// Every process started for the frame has exited when it returns.
func (e *Extractor) ExtractFrame(ctx context.Context, src string, seconds int) []byte {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	data, err := e.extract(ctx, src, seconds)
	if err != nil {
		if ctx.Err() != nil {
			e.logger.Debug("frame extraction timed out", "src", src, "seconds", seconds, "timeout", e.timeout)
		} else {
			e.logger.Debug("frame unavailable", "src", src, "seconds", seconds, "error", err)
		}
		return nil
	}
	return data
}

func (e *Extractor) extract(ctx context.Context, src string, seconds int) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("renderer panic: %v", r)
		}
	}()

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("video file does not exist at path: '%s'", src)
	}

	meta, err := e.metadata(ctx, src, info)
	if err != nil {
		return nil, err
	}
	offset, err := seekOffset(meta, seconds)
	if err != nil {
		return nil, err
	}

	img, err := e.renderer.Render(ctx, src, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to render frame at %.3fs: %w", offset, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// metadata probes src once per file version. Callers stop waiting when ctx
// is done; the probe itself finishes in the background and is cached.
func (e *Extractor) metadata(ctx context.Context, src string, info os.FileInfo) (Metadata, error) {
	e.mu.Lock()
	cached, ok := e.probed[src]
	e.mu.Unlock()
	if ok && cached.size == info.Size() && cached.modTime.Equal(info.ModTime()) {
		return cached.meta, cached.err
	}

	key := fmt.Sprintf("%s:%d:%d", src, info.Size(), info.ModTime().UnixNano())
	ch := e.probes.DoChan(key, func() (interface{}, error) {
		meta, err := e.probe(src)
		e.mu.Lock()
		e.probed[src] = probeResult{size: info.Size(), modTime: info.ModTime(), meta: meta, err: err}
		e.mu.Unlock()
		return meta, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Metadata{}, res.Err
		}
		return res.Val.(Metadata), nil
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	}
}

func (e *Extractor) probe(src string) (meta Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			meta, err = Metadata{}, fmt.Errorf("prober panic: %v", r)
		}
	}()
	return e.prober.Probe(src)
}

// seekOffset clamps seconds to just before the end of the stream and, when
// the frame count is known, to the timestamp of the last frame.
func seekOffset(meta Metadata, seconds int) (float64, error) {
	if meta.Duration <= 0 || math.IsNaN(meta.Duration) {
		return 0, fmt.Errorf("video metadata unavailable (duration=%v)", meta.Duration)
	}

	offset := math.Min(float64(max(seconds, 0)), math.Max(meta.Duration-endEpsilon, 0))
	if meta.FPS > 0 && meta.Frames > 0 {
		offset = math.Min(offset, float64(meta.Frames-1)/meta.FPS)
	}
	return offset, nil
}

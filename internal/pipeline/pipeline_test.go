package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/videolens/internal/models"
	"github.com/bdougie/videolens/internal/parser"
)

const introDocument = `## 📋 Executive Summary
A short clip.

## ⏱️ Chronological Analysis
### [00:05] - Intro
**Speaker:** Host
**Sentiment:** Positive
**Dialogue:** "Welcome."
`

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recorder struct {
	mu          sync.Mutex
	transitions []State
	froms       []State
	errs        []error
	progress    []int
	statuses    []string
}

func (r *recorder) OnTransition(from, to State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.froms = append(r.froms, from)
	r.transitions = append(r.transitions, to)
	r.errs = append(r.errs, err)
}

func (r *recorder) OnProgress(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) OnStatus(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.transitions...)
}

type fakeCompressor struct {
	mu     sync.Mutex
	srcs   []string
	output int64
	err    error
}

func (c *fakeCompressor) Compress(ctx context.Context, src, dst string, obs Observer) error {
	c.mu.Lock()
	c.srcs = append(c.srcs, src)
	c.mu.Unlock()

	obs.OnStatus("Compressing video...")
	for _, p := range []int{0, 25, 50, 75, 100, 140} {
		obs.OnProgress(p)
	}
	if c.err != nil {
		return c.err
	}
	size := c.output
	if size == 0 {
		size = 1024
	}
	return os.WriteFile(dst, make([]byte, size), 0o644)
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	payloads []models.Payload
	errs     []error
	document string
	block    chan struct{}
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, payload models.Payload, obs Observer) (string, error) {
	a.mu.Lock()
	call := len(a.payloads)
	a.payloads = append(a.payloads, payload)
	a.mu.Unlock()

	obs.OnStatus("Initializing model...")
	obs.OnStatus("Analyzing video...")
	// analysis progress is derived, not reported
	obs.OnProgress(99)

	if a.block != nil {
		<-a.block
	}
	if call < len(a.errs) && a.errs[call] != nil {
		return "", a.errs[call]
	}
	return a.document, nil
}

func newAsset(t *testing.T, size int64) *models.VideoAsset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	asset, err := models.NewVideoAsset(path, "video/mp4", size)
	require.NoError(t, err)
	t.Cleanup(func() { asset.Release() })
	return asset
}

func TestRunBelowThresholdSkipsCompressing(t *testing.T) {
	asset := newAsset(t, 10*1024*1024)
	compressor := &fakeCompressor{}
	analyzer := &fakeAnalyzer{document: introDocument}
	rec := &recorder{}

	p := New(asset, compressor, analyzer, discard, WithListener(rec))
	doc, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []State{models.Encoding, models.Analyzing, models.Complete}, rec.states())
	assert.Equal(t, models.Idle, rec.froms[0])
	assert.Empty(t, compressor.srcs)
	assert.Equal(t, models.Complete, p.State())
	assert.Equal(t, 100, p.Progress())
	assert.Equal(t, doc, p.Document())

	require.Len(t, analyzer.payloads, 1)
	assert.EqualValues(t, 10*1024*1024, analyzer.payloads[0].Size)
	assert.Equal(t, "video/mp4", analyzer.payloads[0].MIMEType)
	assert.Equal(t, []string{"Initializing model...", "Analyzing video..."}, rec.statuses)

	parsed, err := parser.Parse(doc)
	require.NoError(t, err)
	require.Len(t, parsed.Segments, 1)
	assert.Equal(t, "00:05", parsed.Segments[0].Timestamp)
	assert.Equal(t, "Intro", parsed.Segments[0].Title)
}

func TestRunAboveThresholdCompresses(t *testing.T) {
	asset := newAsset(t, 25*1024*1024)
	compressor := &fakeCompressor{output: 4096}
	analyzer := &fakeAnalyzer{document: introDocument}
	rec := &recorder{}

	p := New(asset, compressor, analyzer, discard, WithListener(rec))
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []State{models.Compressing, models.Encoding, models.Analyzing, models.Complete}, rec.states())
	require.Equal(t, []string{asset.Original()}, compressor.srcs)

	for _, v := range rec.progress {
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 100)
	}
	assert.Contains(t, rec.progress, 50)

	require.Len(t, analyzer.payloads, 1)
	assert.EqualValues(t, 4096, analyzer.payloads[0].Size, "derivative replaces the original")
	assert.Equal(t, asset.DerivativePath(compressedName), asset.Working())
}

func TestCompressionFailure(t *testing.T) {
	asset := newAsset(t, 4096)
	compressor := &fakeCompressor{err: errors.New("encoder crashed")}
	analyzer := &fakeAnalyzer{document: introDocument}
	rec := &recorder{}

	p := New(asset, compressor, analyzer, discard, WithListener(rec), WithCompressThreshold(1024))
	_, err := p.Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, models.Compressing, stageErr.Stage)
	assert.Equal(t, "compression failed: encoder crashed", err.Error())

	assert.Equal(t, []State{models.Compressing, models.Error}, rec.states())
	assert.Equal(t, models.Error, p.State())
	assert.Equal(t, 0, p.Progress())
	assert.Empty(t, analyzer.payloads)
}

func TestCompressedStillTooLarge(t *testing.T) {
	asset := newAsset(t, 8192)
	compressor := &fakeCompressor{output: 2048}
	analyzer := &fakeAnalyzer{document: introDocument}

	p := New(asset, compressor, analyzer, discard,
		WithCompressThreshold(1024), WithInlineLimit(1024))
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compressed video still exceeds inline limit")
	assert.Equal(t, models.Error, p.State())
	assert.Empty(t, analyzer.payloads)
}

func TestEncodingFailure(t *testing.T) {
	asset := newAsset(t, 512)
	require.NoError(t, os.Remove(asset.Original()))

	rec := &recorder{}
	p := New(asset, &fakeCompressor{}, &fakeAnalyzer{}, discard, WithListener(rec))
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding failed")
	assert.Equal(t, []State{models.Encoding, models.Error}, rec.states())
}

func TestAnalysisFailureThenRetry(t *testing.T) {
	asset := newAsset(t, 4096)
	compressor := &fakeCompressor{output: 512}
	analyzer := &fakeAnalyzer{
		document: introDocument,
		errs:     []error{errors.New("dial tcp: network is unreachable")},
	}
	rec := &recorder{}

	p := New(asset, compressor, analyzer, discard, WithListener(rec), WithCompressThreshold(1024))
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "dial tcp: network is unreachable", err.Error())
	assert.Equal(t, models.Error, p.State())
	require.Error(t, p.Err())
	assert.Equal(t, "dial tcp: network is unreachable", p.Err().Error())

	doc, err := p.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, introDocument, doc)
	assert.Nil(t, p.Err())

	assert.Equal(t, []State{
		models.Compressing, models.Encoding, models.Analyzing, models.Error,
		models.Compressing, models.Encoding, models.Analyzing, models.Complete,
	}, rec.states())

	// both attempts start from the file the user selected
	assert.Equal(t, []string{asset.Original(), asset.Original()}, compressor.srcs)
}

func TestRetryBelowThresholdSkipsCompressing(t *testing.T) {
	asset := newAsset(t, 2048)
	analyzer := &fakeAnalyzer{
		document: introDocument,
		errs:     []error{errors.New("503 service unavailable")},
	}
	rec := &recorder{}

	p := New(asset, &fakeCompressor{}, analyzer, discard, WithListener(rec))
	_, err := p.Run(context.Background())
	require.Error(t, err)
	_, err = p.Retry(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, rec.states(), models.Compressing)
	assert.Equal(t, models.Error, rec.froms[3])
}

func TestStartRules(t *testing.T) {
	asset := newAsset(t, 128)
	p := New(asset, &fakeCompressor{}, &fakeAnalyzer{document: introDocument}, discard)

	_, err := p.Retry(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition, "retry needs a failed run")

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition, "complete is terminal")
	_, err = p.Retry(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRunWhileBusy(t *testing.T) {
	asset := newAsset(t, 128)
	analyzer := &fakeAnalyzer{document: introDocument, block: make(chan struct{})}
	p := New(asset, &fakeCompressor{}, analyzer, discard)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	assert.Eventually(t, func() bool { return p.State() == models.Analyzing }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Running())

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = p.Retry(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(analyzer.block)
	require.NoError(t, <-done)
	assert.False(t, p.Running())
}

func TestProgressTicksWhileAnalyzing(t *testing.T) {
	asset := newAsset(t, 128)
	analyzer := &fakeAnalyzer{document: introDocument, block: make(chan struct{})}
	rec := &recorder{}
	p := New(asset, &fakeCompressor{}, analyzer, discard, WithListener(rec), WithTickInterval(time.Millisecond))

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	assert.Eventually(t, func() bool { return p.Progress() > 0 }, time.Second, 5*time.Millisecond)
	assert.Less(t, p.Progress(), 95)

	close(analyzer.block)
	require.NoError(t, <-done)
	assert.Equal(t, 100, p.Progress())
}

func TestTransitionTable(t *testing.T) {
	all := []State{models.Idle, models.Compressing, models.Encoding, models.Analyzing, models.Complete, models.Error}

	for _, from := range all {
		want := from == models.Compressing || from == models.Encoding || from == models.Analyzing
		assert.Equal(t, want, CanTransition(from, models.Error), "%s -> error", from)
	}

	for _, to := range all {
		want := to == models.Compressing || to == models.Encoding
		assert.Equal(t, want, CanTransition(models.Error, to), "error -> %s", to)
	}

	assert.False(t, CanTransition(models.Idle, models.Analyzing))
	assert.False(t, CanTransition(models.Compressing, models.Analyzing))
	for _, to := range all {
		assert.False(t, CanTransition(models.Complete, to))
	}
}

func TestEncode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.webm")
	content := []byte("\x1a\x45\xdf\xa3 some webm bytes")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	payload, err := Encode(path, "video/webm")
	require.NoError(t, err)
	assert.Equal(t, "video/webm", payload.MIMEType)
	assert.EqualValues(t, len(content), payload.Size)

	decoded, err := payload.Bytes()
	require.NoError(t, err)
	assert.Equal(t, content, decoded)

	_, err = Encode(filepath.Join(t.TempDir(), "missing.mp4"), "video/mp4")
	assert.Error(t, err)
}

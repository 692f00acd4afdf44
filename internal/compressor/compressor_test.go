package compressor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	progress []int
	statuses []string
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

func TestReadProgress(t *testing.T) {
	stream := strings.Join([]string{
		"frame=10",
		"out_time_us=1000000",
		"progress=continue",
		"out_time_us=2500000",
		"out_time_ms=2500000",
		"out_time_us=garbage",
		"out_time_us=-500",
		"out_time_us=9000000",
		"progress=continue",
		"out_time_us=12000000",
		"progress=end",
	}, "\n")

	rec := &recorder{}
	readProgress(strings.NewReader(stream), 10, rec)

	assert.Equal(t, []int{10, 25, 90, 100}, rec.progress)
}

func TestReadProgressWithoutDuration(t *testing.T) {
	rec := &recorder{}
	readProgress(strings.NewReader("out_time_us=5000000\nprogress=end\n"), 0, rec)

	assert.Equal(t, []int{100}, rec.progress)
}

func TestArgsFollowProfile(t *testing.T) {
	c := New("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	args := strings.Join(c.args("in.mov", "out.mp4"), " ")

	assert.Contains(t, args, "-i in.mov")
	assert.Contains(t, args, "scale=-2:'min(640,ih)'")
	assert.Contains(t, args, "-r 24")
	assert.Contains(t, args, "-crf 30")
	assert.Contains(t, args, "-maxrate 800k -bufsize 1600k")
	assert.Contains(t, args, "-b:a 64k")
	assert.Contains(t, args, "-progress pipe:1")
	assert.True(t, strings.HasSuffix(args, "out.mp4"))
}

func TestProbePath(t *testing.T) {
	assert.Equal(t, "ffprobe", probePath("ffmpeg"))
	assert.Equal(t, "/opt/bin/ffprobe", probePath("/opt/bin/ffmpeg"))
	assert.Equal(t, "/opt/ffmpeg-6/bin/ffprobe", probePath("/opt/ffmpeg-6/bin/ffmpeg"))
	assert.Equal(t, "ffprobe", probePath("avconv"))
}

func TestCompressMissingSource(t *testing.T) {
	c := New("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := c.Compress(context.Background(), "/no/such/video.mp4", "/tmp/out.mp4", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestCompressMissingBinary(t *testing.T) {
	src := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(src, []byte("not really a video"), 0o644))

	c := New(filepath.Join(t.TempDir(), "ffmpeg"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &recorder{}
	err := c.Compress(context.Background(), src, filepath.Join(t.TempDir(), "out.mp4"), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start ffmpeg")
	assert.NotContains(t, rec.progress, 100)
}

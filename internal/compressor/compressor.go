// Package compressor re-encodes oversized videos with ffmpeg to a small
// fixed profile that fits inline in an analysis request.
package compressor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bdougie/videolens/internal/models"
)

// Profile is the target encoding.
type Profile struct {
	MaxHeight    int
	FPS          int
	CRF          int
	MaxRate      string
	AudioBitrate string
}

// DefaultProfile trades quality for size: 640p, 24 fps, capped bitrate.
var DefaultProfile = Profile{
	MaxHeight:    640,
	FPS:          24,
	CRF:          30,
	MaxRate:      "800k",
	AudioBitrate: "64k",
}

// Compressor shells out to ffmpeg.
type Compressor struct {
	ffmpegPath  string
	ffprobePath string
	profile     Profile
	logger      *slog.Logger
}

// New creates a compressor using the given ffmpeg binary. ffprobe is
// expected next to it.
func New(ffmpegPath string, logger *slog.Logger) *Compressor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Compressor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: probePath(ffmpegPath),
		profile:     DefaultProfile,
		logger:      logger,
	}
}

func probePath(ffmpegPath string) string {
	idx := strings.LastIndex(ffmpegPath, "ffmpeg")
	if idx < 0 {
		return "ffprobe"
	}
	return ffmpegPath[:idx] + "ffprobe" + ffmpegPath[idx+len("ffmpeg"):]
}

// CheckAvailable verifies ffmpeg can be executed.
func (c *Compressor) CheckAvailable() error {
	output, err := exec.Command(c.ffmpegPath, "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	if !strings.Contains(string(output), "ffmpeg version") {
		return fmt.Errorf("ffmpeg not properly installed")
	}
	return nil
}

// Compress writes a re-encoded copy of src to dst, reporting 0-100 progress
// to obs as ffmpeg advances.
func (c *Compressor) Compress(ctx context.Context, src, dst string, obs models.Observer) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("video file does not exist at path: '%s'", src)
	}
	if obs == nil {
		obs = models.NopObserver{}
	}

	duration, err := c.probeDuration(ctx, src)
	if err != nil {
		// progress degrades to start/end only
		c.logger.Warn("could not probe duration", "src", src, "error", err)
	}

	obs.OnProgress(0)
	obs.OnStatus("Compressing video...")

	cmd := exec.CommandContext(ctx, c.ffmpegPath, c.args(src, dst)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to ffmpeg: %w", err)
	}

	c.logger.Debug("starting ffmpeg", "args", strings.Join(cmd.Args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	readProgress(stdout, duration, obs)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, tail(stderr.String(), 2048))
	}

	info, err := os.Stat(dst)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no output at '%s'", dst)
	}

	obs.OnProgress(100)
	return nil
}

func (c *Compressor) args(src, dst string) []string {
	p := c.profile
	return []string{
		"-y",
		"-i", src,
		"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", p.MaxHeight),
		"-r", strconv.Itoa(p.FPS),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", strconv.Itoa(p.CRF),
		"-maxrate", p.MaxRate,
		"-bufsize", doubleRate(p.MaxRate),
		"-c:a", "aac",
		"-b:a", p.AudioBitrate,
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		dst,
	}
}

func doubleRate(rate string) string {
	unit := strings.TrimLeft(rate, "0123456789")
	n, err := strconv.Atoi(strings.TrimSuffix(rate, unit))
	if err != nil {
		return rate
	}
	return strconv.Itoa(n*2) + unit
}

func (c *Compressor) probeDuration(ctx context.Context, src string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("error getting video duration: %w, output: %s", err, string(output))
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing video duration: %w", err)
	}
	return duration, nil
}

// readProgress consumes ffmpeg's -progress key=value stream and reports
// whole percentages, each at most once and never going backwards.
func readProgress(r io.Reader, duration float64, obs models.Observer) {
	last := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}

		var percent int
		switch key {
		case "out_time_us", "out_time_ms":
			if duration <= 0 {
				continue
			}
			// both keys carry microseconds
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				continue
			}
			percent = int(float64(us) / 1e6 / duration * 100)
		case "progress":
			if value != "end" {
				continue
			}
			percent = 100
		default:
			continue
		}

		percent = min(max(percent, 0), 100)
		if percent > last {
			last = percent
			obs.OnProgress(percent)
		}
	}
	// drain so ffmpeg never blocks on a full pipe
	io.Copy(io.Discard, r)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Package export writes analyses to disk as text, PDF, JSON and key-frame
// images.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bdougie/videolens/internal/models"
	"github.com/bdougie/videolens/internal/timecode"
)

// Format is an export target.
type Format string

const (
	FormatText   Format = "txt"
	FormatPDF    Format = "pdf"
	FormatJSON   Format = "json"
	FormatFrames Format = "frames"
)

// ParseFormats reads a comma separated list such as "txt,pdf".
func ParseFormats(list string) ([]Format, error) {
	var formats []Format
	seen := make(map[Format]bool)
	for _, item := range strings.Split(list, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(item)))
		if f == "" || seen[f] {
			continue
		}
		switch f {
		case FormatText, FormatPDF, FormatJSON, FormatFrames:
		default:
			return nil, fmt.Errorf("unknown export format %q (want txt, pdf, json or frames)", f)
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}

// Report is everything an export can draw from.
type Report struct {
	Name     string
	Document string
	Parsed   *models.ParsedAnalysis
	Frames   []models.FrameSlot
	Remix    *models.Remix
}

// Exporter writes reports below an output directory.
type Exporter struct {
	outputDir string
	logger    *slog.Logger
}

// New creates an exporter.
func New(outputDir string, logger *slog.Logger) *Exporter {
	return &Exporter{outputDir: outputDir, logger: logger}
}

// Dir is the directory a report's files are written to.
func (e *Exporter) Dir(name string) string {
	return filepath.Join(e.outputDir, name)
}

// Export writes report in every requested format and returns the paths
// written.
func (e *Exporter) Export(ctx context.Context, report Report, formats []Format) ([]string, error) {
	dir := e.Dir(report.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for _, format := range formats {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		var written []string
		var err error
		switch format {
		case FormatText:
			written, err = e.text(dir, report)
		case FormatPDF:
			written, err = e.pdf(dir, report)
		case FormatJSON:
			written, err = e.json(dir, report)
		case FormatFrames:
			written, err = e.frames(ctx, dir, report)
		}
		if err != nil {
			return paths, fmt.Errorf("%s export failed: %w", format, err)
		}
		for _, p := range written {
			e.logger.Info("exported", "format", format, "path", p)
		}
		paths = append(paths, written...)
	}

	if report.Remix != nil && len(report.Remix.Audio) > 0 {
		written, err := e.remix(dir, report)
		if err != nil {
			return paths, fmt.Errorf("remix export failed: %w", err)
		}
		paths = append(paths, written...)
	}
	return paths, nil
}

func (e *Exporter) text(dir string, report Report) ([]string, error) {
	path := filepath.Join(dir, report.Name+"_analysis.txt")
	if err := os.WriteFile(path, []byte(report.Document), 0644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

type jsonSegment struct {
	models.TimelineSegment
	Seconds int    `json:"seconds"`
	Frame   string `json:"frame,omitempty"`
}

type jsonReport struct {
	Name             string           `json:"name"`
	GeneratedAt      time.Time        `json:"generated_at"`
	Structured       bool             `json:"structured"`
	ExecutiveSummary string           `json:"executive_summary,omitempty"`
	Segments         []jsonSegment    `json:"segments,omitempty"`
	Insights         []models.Insight `json:"insights,omitempty"`
	Document         string           `json:"document"`
	RemixScript      string           `json:"remix_script,omitempty"`
}

func (e *Exporter) json(dir string, report Report) ([]string, error) {
	out := jsonReport{
		Name:        report.Name,
		GeneratedAt: time.Now().UTC(),
		Document:    report.Document,
	}
	if report.Remix != nil {
		out.RemixScript = report.Remix.Script
	}
	if p := report.Parsed; p != nil {
		out.Structured = true
		out.ExecutiveSummary = p.ExecutiveSummary
		out.Insights = p.Insights
		for i, seg := range p.Segments {
			js := jsonSegment{TimelineSegment: seg, Seconds: seg.Seconds()}
			if frameReady(report.Frames, i) {
				js.Frame = frameFileName(i, seg)
			}
			out.Segments = append(out.Segments, js)
		}
	}

	path := filepath.Join(dir, report.Name+"_analysis.json")
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return []string{path}, nil
}

func (e *Exporter) frames(ctx context.Context, dir string, report Report) ([]string, error) {
	if report.Parsed == nil {
		return nil, nil
	}

	store := NewFrameStore(filepath.Join(dir, "frames"))
	// a re-export replaces the previous manifest
	os.Remove(filepath.Join(store.Dir(), manifestName))

	var paths []string
	for i, seg := range report.Parsed.Segments {
		if !frameReady(report.Frames, i) {
			continue
		}
		frame := FrameFile{
			Name:      frameFileName(i, seg),
			Segment:   i + 1,
			Timestamp: seg.Timestamp,
			Title:     seg.Title,
			Image:     report.Frames[i].Image,
		}
		if err := store.AddFrame(ctx, frame); err != nil {
			return paths, err
		}
		paths = append(paths, filepath.Join(store.Dir(), frame.Name))
	}
	if err := store.Flush(); err != nil {
		return paths, err
	}
	return paths, nil
}

func (e *Exporter) remix(dir string, report Report) ([]string, error) {
	format := report.Remix.Format
	if format == "" {
		format = "mp3"
	}
	audio := filepath.Join(dir, report.Name+"_remix."+format)
	if err := os.WriteFile(audio, report.Remix.Audio, 0644); err != nil {
		return nil, err
	}
	script := filepath.Join(dir, report.Name+"_remix.txt")
	if err := os.WriteFile(script, []byte(report.Remix.Script), 0644); err != nil {
		return nil, err
	}
	return []string{audio, script}, nil
}

func frameReady(slots []models.FrameSlot, i int) bool {
	return i < len(slots) && slots[i].State == models.FrameReady && len(slots[i].Image) > 0
}

func frameFileName(i int, seg models.TimelineSegment) string {
	stamp := strings.ReplaceAll(timecode.Format(seg.Seconds()), ":", "-")
	return fmt.Sprintf("segment_%03d_%s.jpg", i+1, stamp)
}

package export

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/bdougie/videolens/internal/models"
)

const (
	pageMargin = 18.0
	lineHeight = 5.5
	frameWidth = 80.0
)

var accent = [3]int{37, 99, 235}

func (e *Exporter) pdf(dir string, report Report) ([]string, error) {
	path := filepath.Join(dir, report.Name+"_analysis.pdf")
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := RenderPDF(file, report); err != nil {
		os.Remove(path)
		return nil, err
	}
	return []string{path}, nil
}

// RenderPDF writes report as a print-ready A4 document. Unstructured
// reports are printed as the raw document.
func RenderPDF(w io.Writer, report Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(report.Name, true)
	pdf.SetCreator("videolens", false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	r := &pdfRenderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.AddPage()
	r.title(report.Name)

	if report.Parsed == nil {
		r.body(report.Document)
	} else {
		r.structured(report)
	}

	if report.Remix != nil && report.Remix.Script != "" {
		r.heading("Audio Remix Script")
		r.body(report.Remix.Script)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

type pdfRenderer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *pdfRenderer) text(s string) string {
	return r.tr(latin1(s))
}

func (r *pdfRenderer) title(name string) {
	r.pdf.SetFont("Helvetica", "B", 20)
	r.pdf.SetTextColor(17, 24, 39)
	r.pdf.MultiCell(0, 10, r.text(name), "", "L", false)
	r.pdf.SetFont("Helvetica", "", 10)
	r.pdf.SetTextColor(107, 114, 128)
	r.pdf.CellFormat(0, 6, "Video analysis", "", 1, "L", false, 0, "")
	r.pdf.Ln(4)
}

func (r *pdfRenderer) heading(label string) {
	r.pdf.Ln(3)
	r.pdf.SetFont("Helvetica", "B", 14)
	r.pdf.SetTextColor(accent[0], accent[1], accent[2])
	r.pdf.CellFormat(0, 8, r.text(label), "B", 1, "L", false, 0, "")
	r.pdf.Ln(2)
}

func (r *pdfRenderer) body(s string) {
	r.pdf.SetFont("Helvetica", "", 10)
	r.pdf.SetTextColor(31, 41, 55)
	r.pdf.MultiCell(0, lineHeight, r.text(strings.TrimSpace(s)), "", "L", false)
	r.pdf.Ln(1)
}

func (r *pdfRenderer) field(label, value string) {
	r.pdf.SetFont("Helvetica", "B", 10)
	r.pdf.SetTextColor(55, 65, 81)
	r.pdf.CellFormat(30, lineHeight, r.text(label+":"), "", 0, "L", false, 0, "")
	r.pdf.SetFont("Helvetica", "", 10)
	r.pdf.SetTextColor(31, 41, 55)
	r.pdf.MultiCell(0, lineHeight, r.text(value), "", "L", false)
}

func (r *pdfRenderer) structured(report Report) {
	p := report.Parsed

	if p.ExecutiveSummary != "" {
		r.heading("Executive Summary")
		r.body(p.ExecutiveSummary)
	}

	if len(p.Segments) > 0 {
		r.heading("Chronological Analysis")
		for i, seg := range p.Segments {
			r.segment(i, seg, report.Frames)
		}
	}

	if len(p.Insights) > 0 {
		r.heading("Key Insights")
		for _, in := range p.Insights {
			r.pdf.SetFont("Helvetica", "B", 10)
			r.pdf.SetTextColor(17, 24, 39)
			r.pdf.MultiCell(0, lineHeight, r.text("- "+in.Title), "", "L", false)
			r.body(in.Content)
		}
	}
}

func (r *pdfRenderer) segment(i int, seg models.TimelineSegment, frames []models.FrameSlot) {
	r.pdf.Ln(2)
	r.pdf.SetFont("Helvetica", "B", 12)
	r.pdf.SetTextColor(17, 24, 39)
	r.pdf.MultiCell(0, 7, r.text(fmt.Sprintf("[%s] %s", seg.Timestamp, seg.Title)), "", "L", false)

	if frameReady(frames, i) {
		r.image(fmt.Sprintf("segment-%d", i), frames[i].Image)
	}

	r.field("Speaker", seg.Speaker)
	r.field("Sentiment", seg.Sentiment)
	r.field("Dialogue", seg.Dialogue)
	if seg.VisualContext != "" {
		r.field("Visual", seg.VisualContext)
	}
}

// image embeds a JPEG key-frame scaled to frameWidth. Frames that fail to
// decode are skipped.
func (r *pdfRenderer) image(name string, data []byte) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 {
		return
	}
	height := frameWidth * float64(cfg.Height) / float64(cfg.Width)

	_, pageHeight := r.pdf.GetPageSize()
	if r.pdf.GetY()+height > pageHeight-pageMargin {
		r.pdf.AddPage()
	}

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	r.pdf.ImageOptions(name, pageMargin, r.pdf.GetY(), frameWidth, height, true, opts, 0, "")
	r.pdf.Ln(2)
}

var replacer = strings.NewReplacer(
	"‘", "'", "’", "'", "“", "\"", "”", "\"",
	"–", "-", "—", "-", "…", "...", "•", "-",
)

// latin1 drops what the core PDF fonts cannot draw, such as emoji.
func latin1(s string) string {
	s = replacer.Replace(s)
	return strings.Map(func(r rune) rune {
		if r > 0xFF || (r < 0x20 && r != '\n' && r != '\t') {
			return -1
		}
		return r
	}, s)
}

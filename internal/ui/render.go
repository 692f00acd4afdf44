// Package ui presents an analysis in the terminal, either as a live
// bubbletea program or as plain rendered text.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bdougie/videolens/internal/models"
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")) // Magenta
	stampStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // Cyan
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // Gray
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))           // Bright Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true) // Red
	statusStyle  = lipgloss.NewStyle().Faint(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	bodyStyle    = lipgloss.NewStyle().PaddingLeft(2)
)

// Render formats a parsed analysis. slots holds the key-frame of each
// segment in the same order; it may be shorter than the timeline.
func Render(parsed *models.ParsedAnalysis, slots []models.FrameSlot) string {
	var b strings.Builder

	if parsed.ExecutiveSummary != "" {
		b.WriteString(sectionStyle.Render("📋 Executive Summary") + "\n")
		b.WriteString(bodyStyle.Render(parsed.ExecutiveSummary) + "\n\n")
	}

	if len(parsed.Segments) > 0 {
		b.WriteString(sectionStyle.Render("⏱️ Timeline") + "\n")
		for i, seg := range parsed.Segments {
			b.WriteString(renderSegment(seg, slot(slots, i)))
			b.WriteString("\n")
		}
	}

	if len(parsed.Insights) > 0 {
		b.WriteString(sectionStyle.Render("🔑 Key Insights") + "\n")
		for _, insight := range parsed.Insights {
			line := insight.Content
			if insight.Title != "" {
				line = lipgloss.NewStyle().Bold(true).Render(insight.Title+":") + " " + insight.Content
			}
			b.WriteString("  • " + line + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Raw is the fallback for documents the parser could not structure.
func Raw(document string) string {
	return statusStyle.Render("The analysis could not be structured; showing it as received.") +
		"\n\n" + strings.TrimSpace(document) + "\n"
}

func renderSegment(seg models.TimelineSegment, frame *models.FrameSlot) string {
	var b strings.Builder

	stamp := seg.Timestamp
	if stamp == "" {
		stamp = "--:--"
	}
	fmt.Fprintf(&b, "  %s %s", stampStyle.Render("["+stamp+"]"), seg.Title)
	if frame != nil {
		b.WriteString("  " + frameLabel(*frame))
	}
	b.WriteString("\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "    %s %s\n", labelStyle.Render(label+":"), value)
	}
	field("Speaker", seg.Speaker)
	field("Sentiment", seg.Sentiment)
	field("Dialogue", seg.Dialogue)
	field("Visual", seg.VisualContext)

	return b.String()
}

func frameLabel(slot models.FrameSlot) string {
	switch slot.State {
	case models.FrameReady:
		return readyStyle.Render(fmt.Sprintf("🖼 key-frame %.1f KB", float64(len(slot.Image))/1024))
	case models.FrameLoading:
		return statusStyle.Render("… key-frame loading")
	default:
		return statusStyle.Render("no key-frame")
	}
}

func slot(slots []models.FrameSlot, i int) *models.FrameSlot {
	if i < 0 || i >= len(slots) {
		return nil
	}
	return &slots[i]
}

// Package parser rebuilds a structured timeline from the markdown document
// returned by the analysis model.
//
// The document is free text written by a model, so extraction is best
// effort: every section is located independently through the header
// markers in Template, and every segment field falls back to a placeholder
// when it is missing. Parse only fails when neither an executive summary
// nor a single segment could be found.
package parser

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/bdougie/videolens/internal/models"
)

// ErrUnstructured is returned when the document carries no recognizable
// structure and should be shown as raw text instead.
var ErrUnstructured = errors.New("analysis document has no recognizable structure")

var (
	topHeaderRE = regexp.MustCompile(`^\s{0,3}#{1,2}\s+(.*)$`)
	subHeaderRE = regexp.MustCompile(`^\s{0,3}#{3,}\s*(.*)$`)

	segmentTitleRE = regexp.MustCompile(`^\[([^\]]*)\]\s*(?:[-–—:]\s*)?(.*)$`)

	// **Label:** value  or  **Label**: value, optionally bulleted
	fieldRE = regexp.MustCompile(`^\s*(?:[-*•]\s+)?\*\*([^*]+?)(?::\*\*|\*\*\s*:)\s*(.*)$`)

	bulletRE  = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)])\s+(.*)$`)
	insightRE = regexp.MustCompile(`^\*\*([^*]+?)(?::\*\*|\*\*\s*:)\s*(.*)$`)
)

// Parse splits an analysis document into its summary, timeline and
// insights. It never panics; when nothing useful can be extracted it
// returns ErrUnstructured.
func Parse(document string) (*models.ParsedAnalysis, error) {
	lines := splitLines(document)
	sections := splitSections(lines)

	result := &models.ParsedAnalysis{
		Segments: []models.TimelineSegment{},
		Insights: []models.Insight{},
	}

	if body, ok := findSection(sections, summaryLabels()); ok {
		result.ExecutiveSummary = strings.TrimSpace(strings.Join(body, "\n"))
	}

	if body, ok := findSection(sections, timelineLabels()); ok {
		result.Segments = parseSegments(body)
	}

	if body, ok := findSection(sections, takeawayLabels()); ok {
		result.Insights = parseInsights(body)
	}

	if result.ExecutiveSummary == "" && len(result.Segments) == 0 {
		return nil, ErrUnstructured
	}
	return result, nil
}

type section struct {
	title string
	body  []string
}

func splitLines(document string) []string {
	document = strings.ReplaceAll(document, "\r\n", "\n")
	return strings.Split(document, "\n")
}

// splitSections cuts the document at every top level (# or ##) header.
// Text before the first header is dropped.
func splitSections(lines []string) []section {
	var sections []section
	current := -1
	for _, line := range lines {
		if m := topHeaderRE.FindStringSubmatch(line); m != nil {
			sections = append(sections, section{title: m[1]})
			current = len(sections) - 1
			continue
		}
		if current >= 0 {
			sections[current].body = append(sections[current].body, line)
		}
	}
	return sections
}

func findSection(sections []section, labels []string) ([]string, bool) {
	for _, s := range sections {
		if matchesLabel(s.title, labels) {
			return s.body, true
		}
	}
	return nil, false
}

// normalizeHeader strips decoration (icons, emphasis, trailing colons)
// from a header and lower-cases it.
func normalizeHeader(title string) string {
	title = strings.TrimLeftFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	title = strings.TrimRightFunc(title, func(r rune) bool {
		return r == ':' || r == '*' || unicode.IsSpace(r)
	})
	return strings.ToLower(title)
}

func matchesLabel(title string, labels []string) bool {
	norm := normalizeHeader(title)
	for _, label := range labels {
		if strings.HasPrefix(norm, strings.ToLower(label)) {
			return true
		}
	}
	return false
}

func summaryLabels() []string {
	return collectLabels(func(t Template) Header { return t.Summary })
}

func timelineLabels() []string {
	return collectLabels(func(t Template) Header { return t.Timeline })
}

func takeawayLabels() []string {
	return collectLabels(func(t Template) Header { return t.Takeaways })
}

func collectLabels(pick func(Template) Header) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, t := range Templates {
		label := pick(t).Label
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	return labels
}

// parseSegments splits the chronological section on ### headers. Anything
// before the first one is not a segment and is ignored.
func parseSegments(body []string) []models.TimelineSegment {
	segments := []models.TimelineSegment{}

	var header string
	var block []string
	inSegment := false

	flush := func() {
		if inSegment {
			segments = append(segments, parseSegment(header, block))
		}
	}

	for _, line := range body {
		if m := subHeaderRE.FindStringSubmatch(line); m != nil {
			flush()
			header = m[1]
			block = []string{line}
			inSegment = true
			continue
		}
		if inSegment {
			block = append(block, line)
		}
	}
	flush()

	return segments
}

func parseSegment(header string, block []string) models.TimelineSegment {
	seg := models.TimelineSegment{
		Raw:       strings.TrimSpace(strings.Join(block, "\n")),
		Speaker:   models.DefaultSpeaker,
		Sentiment: models.DefaultSentiment,
		Dialogue:  models.DefaultDialogue,
	}

	header = strings.TrimSpace(stripEmphasis(header))
	if m := segmentTitleRE.FindStringSubmatch(header); m != nil {
		seg.Timestamp = strings.TrimSpace(m[1])
		seg.Title = strings.TrimSpace(stripEmphasis(m[2]))
	} else {
		seg.Title = header
	}

	fields := parseFields(block[1:])
	if v := fields[strings.ToLower(FieldSpeaker)]; v != "" {
		seg.Speaker = v
	}
	if v := fields[strings.ToLower(FieldSentiment)]; v != "" {
		seg.Sentiment = v
	}
	if v := fields[strings.ToLower(FieldDialogue)]; v != "" {
		seg.Dialogue = v
	}
	if v := fields[strings.ToLower(FieldVisualContext)]; v != "" {
		seg.VisualContext = v
	} else if v := fields["visual"]; v != "" {
		seg.VisualContext = v
	}

	return seg
}

// parseFields collects labelled fields. A value runs until the next
// labelled field or the end of the block; any label, known or not, ends
// the previous value.
func parseFields(lines []string) map[string]string {
	fields := make(map[string]string)

	var label string
	var value []string

	flush := func() {
		if label == "" {
			return
		}
		v := strings.TrimSpace(strings.Join(value, "\n"))
		if _, exists := fields[label]; !exists || fields[label] == "" {
			fields[label] = v
		}
	}

	for _, line := range lines {
		if m := fieldRE.FindStringSubmatch(line); m != nil {
			flush()
			label = strings.ToLower(strings.TrimSpace(m[1]))
			value = []string{m[2]}
			continue
		}
		if label != "" {
			value = append(value, line)
		}
	}
	flush()

	return fields
}

func parseInsights(body []string) []models.Insight {
	var bullets []string
	for _, line := range body {
		if m := bulletRE.FindStringSubmatch(line); m != nil {
			bullets = append(bullets, strings.TrimSpace(m[1]))
			continue
		}
		// wrapped bullet text
		if trimmed := strings.TrimSpace(line); trimmed != "" && len(bullets) > 0 {
			bullets[len(bullets)-1] += " " + trimmed
		}
	}

	insights := make([]models.Insight, 0, len(bullets))
	for _, b := range bullets {
		if b == "" {
			continue
		}
		insights = append(insights, parseInsight(b))
	}
	return insights
}

func parseInsight(bullet string) models.Insight {
	if m := insightRE.FindStringSubmatch(bullet); m != nil {
		title := strings.TrimSpace(m[1])
		content := strings.TrimSpace(m[2])
		if title != "" && content != "" {
			return models.Insight{Title: title, Content: content}
		}
	}
	return models.Insight{Title: models.DefaultInsight, Content: bullet}
}

func stripEmphasis(s string) string {
	s = strings.TrimSpace(s)
	for _, mark := range []string{"**", "__"} {
		if strings.HasPrefix(s, mark) && strings.HasSuffix(s, mark) && len(s) > 2*len(mark) {
			s = s[len(mark) : len(s)-len(mark)]
		}
	}
	return s
}

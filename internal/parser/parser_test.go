package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/videolens/internal/models"
)

const sampleDocument = `# Video Analysis

## 📋 Executive Summary
A product demo where two engineers walk through the new dashboard.
The tone is upbeat.

## ⏱️ Chronological Analysis
Here is the breakdown of the video:

### [00:05] - Intro
**Speaker:** Alice
**Sentiment:** Positive
**Dialogue:** "Welcome everyone, today we look at the dashboard."
**Visual Context:** Alice stands in front of a whiteboard.

### [01:30] - Live Demo
**Speaker**: Bob
**Dialogue**: "Clicking here opens the report."
It takes a second to load.
**Visual Context**: Screen recording of the dashboard.

### [01:02:03] - Wrap Up
**Speaker:** Alice
**Sentiment:** Neutral

## 💡 Key Takeaways
- **Speed**: The new dashboard loads in under a second.
- **Adoption:** Teams can opt in today.
- Bob forgot to mention pricing.
`

func TestParseSampleDocument(t *testing.T) {
	got, err := Parse(sampleDocument)
	require.NoError(t, err)

	assert.Equal(t, "A product demo where two engineers walk through the new dashboard.\nThe tone is upbeat.", got.ExecutiveSummary)

	require.Len(t, got.Segments, 3)

	intro := got.Segments[0]
	assert.Equal(t, "00:05", intro.Timestamp)
	assert.Equal(t, "Intro", intro.Title)
	assert.Equal(t, "Alice", intro.Speaker)
	assert.Equal(t, "Positive", intro.Sentiment)
	assert.Equal(t, `"Welcome everyone, today we look at the dashboard."`, intro.Dialogue)
	assert.Equal(t, "Alice stands in front of a whiteboard.", intro.VisualContext)
	assert.Equal(t, 5, intro.Seconds())
	assert.True(t, strings.HasPrefix(intro.Raw, "### [00:05] - Intro"))

	demo := got.Segments[1]
	assert.Equal(t, "01:30", demo.Timestamp)
	assert.Equal(t, "Live Demo", demo.Title)
	assert.Equal(t, "Bob", demo.Speaker)
	assert.Equal(t, models.DefaultSentiment, demo.Sentiment, "missing sentiment defaults to Neutral")
	assert.Equal(t, "\"Clicking here opens the report.\"\nIt takes a second to load.", demo.Dialogue)
	assert.Equal(t, "Screen recording of the dashboard.", demo.VisualContext)

	wrap := got.Segments[2]
	assert.Equal(t, 3723, wrap.Seconds())
	assert.Equal(t, models.DefaultDialogue, wrap.Dialogue)
	assert.Equal(t, "", wrap.VisualContext)

	require.Len(t, got.Insights, 3)
	assert.Equal(t, models.Insight{Title: "Speed", Content: "The new dashboard loads in under a second."}, got.Insights[0])
	assert.Equal(t, models.Insight{Title: "Adoption", Content: "Teams can opt in today."}, got.Insights[1])
	assert.Equal(t, models.Insight{Title: "Observation", Content: "Bob forgot to mention pricing."}, got.Insights[2])
}

func TestParseSegmentCount(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12} {
		t.Run(fmt.Sprintf("%d segments", n), func(t *testing.T) {
			var b strings.Builder
			b.WriteString("## Chronological Analysis\n")
			for i := 0; i < n; i++ {
				fmt.Fprintf(&b, "### [00:%02d] - Segment %d\n**Speaker:** S%d\n\n", i, i, i)
			}

			got, err := Parse(b.String())
			require.NoError(t, err)
			require.Len(t, got.Segments, n)
			for i, seg := range got.Segments {
				assert.Equal(t, fmt.Sprintf("Segment %d", i), seg.Title)
				assert.Equal(t, fmt.Sprintf("S%d", i), seg.Speaker)
				assert.Equal(t, i, seg.Seconds())
			}
		})
	}
}

func TestParseSegmentsKeepSourceOrder(t *testing.T) {
	doc := "## Chronological Analysis\n### [02:00] - Later\n### [00:10] - Earlier\n"
	got, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, got.Segments, 2)
	assert.Equal(t, "Later", got.Segments[0].Title)
	assert.Equal(t, "Earlier", got.Segments[1].Title)
}

func TestParseMissingSentimentOnly(t *testing.T) {
	doc := `## Chronological Analysis
### [00:42] - Q&A
**Speaker:** Carol
**Dialogue:** Any questions?
**Visual Context:** Audience raising hands.
`
	got, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)

	seg := got.Segments[0]
	assert.Equal(t, "Neutral", seg.Sentiment)
	assert.Equal(t, "00:42", seg.Timestamp)
	assert.Equal(t, "Q&A", seg.Title)
	assert.Equal(t, "Carol", seg.Speaker)
	assert.Equal(t, "Any questions?", seg.Dialogue)
	assert.Equal(t, "Audience raising hands.", seg.VisualContext)
}

func TestParseSegmentWithoutFields(t *testing.T) {
	got, err := Parse("## Chronological Analysis\n### Opening shot\nJust some prose.\n")
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)

	seg := got.Segments[0]
	assert.Equal(t, "", seg.Timestamp)
	assert.Equal(t, "Opening shot", seg.Title)
	assert.Equal(t, models.DefaultSpeaker, seg.Speaker)
	assert.Equal(t, models.DefaultSentiment, seg.Sentiment)
	assert.Equal(t, models.DefaultDialogue, seg.Dialogue)
	assert.Equal(t, "", seg.VisualContext)
	assert.Equal(t, 0, seg.Seconds())
}

func TestParseUnstructured(t *testing.T) {
	docs := map[string]string{
		"empty":           "",
		"plain prose":     "The model refused to follow the template and wrote an essay instead.",
		"unknown headers": "## Overview\nSomething\n## Details\n- a bullet",
		"only takeaways":  "## Key Takeaways\n- **A**: b",
		"empty timeline":  "## Chronological Analysis\nNo segments here.\n",
		"empty summary":   "## Executive Summary\n\n## Other\ntext",
		"segment outside": "### [00:05] - Intro\n**Speaker:** Bob",
		"whitespace":      "   \n\n\t\n",
		"headers only":    "##\n###\n#",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(doc)
			assert.ErrorIs(t, err, ErrUnstructured)
			assert.Nil(t, got)
		})
	}
}

func TestParseTakeawayHeaderVariants(t *testing.T) {
	for _, tmpl := range Templates {
		t.Run(tmpl.Takeaways.Label, func(t *testing.T) {
			doc := fmt.Sprintf("## %s\nSummary.\n## %s\n- **One**: first\n* two\n1. **Three:** third\n",
				tmpl.Summary, tmpl.Takeaways)

			got, err := Parse(doc)
			require.NoError(t, err)
			assert.Equal(t, "Summary.", got.ExecutiveSummary)
			assert.Empty(t, got.Segments)
			require.Len(t, got.Insights, 3)
			assert.Equal(t, "One", got.Insights[0].Title)
			assert.Equal(t, models.DefaultInsight, got.Insights[1].Title)
			assert.Equal(t, "two", got.Insights[1].Content)
			assert.Equal(t, "Three", got.Insights[2].Title)
			assert.Equal(t, "third", got.Insights[2].Content)
		})
	}
}

func TestParseHeadersWithoutIcons(t *testing.T) {
	doc := "## Executive Summary:\nShort.\n## **Chronological Analysis**\n### [00:01] - Start\n"
	got, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "Short.", got.ExecutiveSummary)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, "Start", got.Segments[0].Title)
}

func TestParseDegradesPerSection(t *testing.T) {
	// The timeline header was renamed; the summary must still come through.
	doc := "## 📋 Executive Summary\nStill here.\n## 🎬 Scene Breakdown\n### [00:05] - Intro\n"
	got, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "Still here.", got.ExecutiveSummary)
	assert.Empty(t, got.Segments)
}

func TestParseWrappedInsightBullet(t *testing.T) {
	doc := "## Executive Summary\nx\n## Key Insights\n- **Focus**: the first line\n  continues here\n- second\n"
	got, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, got.Insights, 2)
	assert.Equal(t, "the first line continues here", got.Insights[0].Content)
}

func TestParseWindowsLineEndings(t *testing.T) {
	doc := strings.ReplaceAll(sampleDocument, "\n", "\r\n")
	got, err := Parse(doc)
	require.NoError(t, err)
	assert.Len(t, got.Segments, 3)
	assert.Equal(t, "Alice", got.Segments[0].Speaker)
}

func TestParseEmphasizedSegmentHeader(t *testing.T) {
	got, err := Parse("## Chronological Analysis\n### **[00:05] - Intro**\n")
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, "00:05", got.Segments[0].Timestamp)
	assert.Equal(t, "Intro", got.Segments[0].Title)
}

func TestParseIsDeterministic(t *testing.T) {
	first, err := Parse(sampleDocument)
	require.NoError(t, err)
	second, err := Parse(sampleDocument)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEndToEndSingleSegment(t *testing.T) {
	got, err := Parse("## Chronological Analysis\n### [00:05] - Intro\n")
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, "00:05", got.Segments[0].Timestamp)
	assert.Equal(t, "Intro", got.Segments[0].Title)
}

func TestPromptMentionsEveryMarker(t *testing.T) {
	p := Current.Prompt()
	for _, want := range []string{
		Current.Summary.String(),
		Current.Timeline.String(),
		Current.Takeaways.String(),
		"### [MM:SS] - ",
		"**" + FieldSpeaker + ":**",
		"**" + FieldSentiment + ":**",
		"**" + FieldDialogue + ":**",
		"**" + FieldVisualContext + ":**",
	} {
		assert.Contains(t, p, want)
	}
}

func TestMemo(t *testing.T) {
	var m Memo

	first, err := m.Parse(sampleDocument)
	require.NoError(t, err)
	second, err := m.Parse(sampleDocument)
	require.NoError(t, err)
	assert.Same(t, first, second, "same document should hit the cache")

	_, err = m.Parse("nothing useful")
	assert.ErrorIs(t, err, ErrUnstructured)

	third, err := m.Parse(sampleDocument)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first, third)

	m.Reset()
	fourth, err := m.Parse(sampleDocument)
	require.NoError(t, err)
	assert.NotSame(t, third, fourth)
}

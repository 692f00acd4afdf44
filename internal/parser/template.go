package parser

import (
	"fmt"
	"strings"
)

// Template describes the section headers an analysis document is expected
// to carry. The parser depends on these markers and nothing else: if the
// model stops emitting one of them, only that section is lost.
type Template struct {
	Version   int
	Summary   Header
	Timeline  Header
	Takeaways Header
}

// Header is a decorated section label such as "📋 Executive Summary".
type Header struct {
	Icon  string
	Label string
}

func (h Header) String() string {
	if h.Icon == "" {
		return h.Label
	}
	return h.Icon + " " + h.Label
}

// Field labels used inside a timeline segment
const (
	FieldSpeaker       = "Speaker"
	FieldSentiment     = "Sentiment"
	FieldDialogue      = "Dialogue"
	FieldVisualContext = "Visual Context"
)

var (
	// TemplateV1 is the original layout with a "Key Takeaways" section.
	TemplateV1 = Template{
		Version:   1,
		Summary:   Header{Icon: "📋", Label: "Executive Summary"},
		Timeline:  Header{Icon: "⏱️", Label: "Chronological Analysis"},
		Takeaways: Header{Icon: "💡", Label: "Key Takeaways"},
	}

	// TemplateV2 renamed the takeaways section to "Key Insights".
	TemplateV2 = Template{
		Version:   2,
		Summary:   Header{Icon: "📋", Label: "Executive Summary"},
		Timeline:  Header{Icon: "⏱️", Label: "Chronological Analysis"},
		Takeaways: Header{Icon: "🔑", Label: "Key Insights"},
	}

	// Templates lists every layout the parser accepts, newest first.
	Templates = []Template{TemplateV2, TemplateV1}

	// Current is the layout requested from the model.
	Current = TemplateV2
)

// Prompt returns the instruction sent along with the video asking the
// model to answer in this template.
func (t Template) Prompt() string {
	var b strings.Builder
	b.WriteString("Analyze this video carefully. Watch the visuals and listen to the audio.\n")
	b.WriteString("Respond in Markdown using exactly the following structure and headers.\n\n")

	fmt.Fprintf(&b, "## %s\n", t.Summary)
	b.WriteString("A concise paragraph describing what the video is about, who appears in it and its overall tone.\n\n")

	fmt.Fprintf(&b, "## %s\n", t.Timeline)
	b.WriteString("Break the video into chronological segments. For each segment write:\n\n")
	b.WriteString("### [MM:SS] - Short segment title\n")
	fmt.Fprintf(&b, "**%s:** who is speaking, or Unknown Speaker\n", FieldSpeaker)
	fmt.Fprintf(&b, "**%s:** Positive, Negative, Neutral or Mixed\n", FieldSentiment)
	fmt.Fprintf(&b, "**%s:** the key words spoken in this segment\n", FieldDialogue)
	fmt.Fprintf(&b, "**%s:** what can be seen on screen\n\n", FieldVisualContext)
	b.WriteString("Use HH:MM:SS timestamps for videos longer than one hour.\n\n")

	fmt.Fprintf(&b, "## %s\n", t.Takeaways)
	b.WriteString("A bullet list of the most important points, each formatted as:\n")
	b.WriteString("- **Title**: explanation\n")

	return b.String()
}

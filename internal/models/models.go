package models

import (
	"encoding/base64"

	"github.com/bdougie/videolens/internal/timecode"
)

// Placeholders used when a segment block omits a field
const (
	DefaultSpeaker   = "Unknown Speaker"
	DefaultSentiment = "Neutral"
	DefaultDialogue  = "No dialogue detected."
	DefaultInsight   = "Observation"
)

// ProcessingState is the stage a video's pipeline is in
type ProcessingState int

const (
	Idle ProcessingState = iota
	Compressing
	Encoding
	Analyzing
	Complete
	Error
)

func (s ProcessingState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Compressing:
		return "compressing"
	case Encoding:
		return "encoding"
	case Analyzing:
		return "analyzing"
	case Complete:
		return "complete"
	case Error:
		return "error"
	}
	return "unknown"
}

// Active reports whether a run is in flight in this state.
func (s ProcessingState) Active() bool {
	return s == Compressing || s == Encoding || s == Analyzing
}

// TimelineSegment is one chronological unit of an analysis
type TimelineSegment struct {
	Raw           string `json:"-"`
	Timestamp     string `json:"timestamp"`
	Title         string `json:"title"`
	Speaker       string `json:"speaker"`
	Sentiment     string `json:"sentiment"`
	Dialogue      string `json:"dialogue"`
	VisualContext string `json:"visual_context,omitempty"`
}

// Seconds is the segment's offset into the video.
func (s TimelineSegment) Seconds() int {
	return timecode.Parse(s.Timestamp)
}

// Insight is a single takeaway bullet
type Insight struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ParsedAnalysis is the structured view of an analysis document
type ParsedAnalysis struct {
	ExecutiveSummary string            `json:"executive_summary"`
	Segments         []TimelineSegment `json:"segments"`
	Insights         []Insight         `json:"insights"`
}

// FrameState tracks a segment's key-frame
type FrameState int

const (
	FrameLoading FrameState = iota
	FrameReady
	FrameUnavailable
)

func (s FrameState) String() string {
	switch s {
	case FrameLoading:
		return "loading"
	case FrameReady:
		return "ready"
	case FrameUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// FrameSlot holds the key-frame for one segment
type FrameSlot struct {
	Image []byte     `json:"-"`
	State FrameState `json:"state"`
}

// FrameWork represents a key-frame to be extracted
type FrameWork struct {
	Index   int
	Seconds int
	Total   int
}

// Payload is a video in its transport encoding
type Payload struct {
	MIMEType string
	Encoded  string
	Size     int64
}

// Bytes decodes the payload back into the raw video bytes.
func (p Payload) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Encoded)
}

// Remix is a synthesized narration of an analysis
type Remix struct {
	Script string
	Audio  []byte
	Format string
}

// Observer receives progress and status updates from long running
// collaborators such as the compressor and the analysis client.
type Observer interface {
	OnProgress(percent int)
	OnStatus(message string)
}

// NopObserver ignores every update.
type NopObserver struct{}

func (NopObserver) OnProgress(int)  {}
func (NopObserver) OnStatus(string) {}

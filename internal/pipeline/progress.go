package pipeline

import "github.com/bdougie/videolens/internal/models"

const (
	encodingStep = 5
	encodingCap  = 30
	analyzingCap = 95
)

// Progress derives a cosmetic percentage from the current state and the
// number of ticks spent in it. The same sequence of calls always yields the
// same values.
type Progress struct {
	state models.ProcessingState
	value int
}

// Enter switches to state and returns the resulting percentage.
func (p *Progress) Enter(state models.ProcessingState) int {
	p.state = state
	switch state {
	case models.Idle, models.Compressing, models.Encoding, models.Error:
		p.value = 0
	case models.Complete:
		p.value = 100
	}
	return p.value
}

// Tick advances the time based ramps by one step.
func (p *Progress) Tick() int {
	switch p.state {
	case models.Encoding:
		p.value = min(p.value+encodingStep, encodingCap)
	case models.Analyzing:
		step := (analyzingCap - p.value) / 10
		if step < 1 {
			step = 1
		}
		p.value = min(p.value+step, analyzingCap-1)
	}
	return p.value
}

// Report records the compression engine's own percentage. It is ignored
// outside Compressing.
func (p *Progress) Report(percent int) int {
	if p.state == models.Compressing {
		p.value = min(max(percent, 0), 100)
	}
	return p.value
}

// Value is the current percentage.
func (p *Progress) Value() int {
	return p.value
}

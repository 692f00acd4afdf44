package pipeline

import (
	"errors"
	"fmt"

	"github.com/bdougie/videolens/internal/models"
)

// State aliases the processing state so callers need only one import.
type State = models.ProcessingState

var (
	// ErrBusy is returned when a run is requested while one is active.
	ErrBusy = errors.New("pipeline: a run is already in progress")

	// ErrInvalidTransition is returned for moves the state machine forbids.
	ErrInvalidTransition = errors.New("pipeline: invalid state transition")
)

var transitions = map[State][]State{
	models.Idle:        {models.Compressing, models.Encoding},
	models.Compressing: {models.Encoding, models.Error},
	models.Encoding:    {models.Analyzing, models.Error},
	models.Analyzing:   {models.Complete, models.Error},
	models.Error:       {models.Compressing, models.Encoding},
	models.Complete:    nil,
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StageError is a failure of one pipeline stage. Its message is meant for
// display.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage State, format string, err error) *StageError {
	if format == "" {
		return &StageError{Stage: stage, Err: err}
	}
	return &StageError{Stage: stage, Err: fmt.Errorf(format+": %w", err)}
}

package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bdougie/videolens/internal/pipeline"
)

// TransitionMsg reports a pipeline state change.
type TransitionMsg struct {
	From, To pipeline.State
	Err      error
}

// ProgressMsg carries the pipeline's progress percentage.
type ProgressMsg int

// StatusMsg carries a human readable status line.
type StatusMsg string

// Bridge is a pipeline.Listener that forwards every event into the
// bubbletea update loop. Events are delivered in the order the pipeline
// emitted them.
type Bridge struct {
	updates chan tea.Msg
	quit    chan struct{}
	once    sync.Once
}

// NewBridge creates an open bridge.
func NewBridge() *Bridge {
	return &Bridge{
		updates: make(chan tea.Msg, 64),
		quit:    make(chan struct{}),
	}
}

func (b *Bridge) OnTransition(from, to pipeline.State, err error) {
	b.send(TransitionMsg{From: from, To: to, Err: err})
}

func (b *Bridge) OnProgress(percent int) { b.send(ProgressMsg(percent)) }

func (b *Bridge) OnStatus(message string) { b.send(StatusMsg(message)) }

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.updates <- msg:
	case <-b.quit:
	}
}

// Listen returns a command that waits for the next event. The model
// issues it again after handling each event.
func (b *Bridge) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.updates:
			return msg
		case <-b.quit:
			return nil
		}
	}
}

// Close stops delivery; pending and future events are dropped.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.quit) })
}

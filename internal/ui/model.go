package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bdougie/videolens/internal/models"
	"github.com/bdougie/videolens/internal/parser"
	"github.com/bdougie/videolens/internal/pipeline"
	"github.com/bdougie/videolens/internal/session"
)

const progressWidth = 40

// runDoneMsg is sent when a pipeline run returns.
type runDoneMsg struct {
	err      error
	rejected bool
}

// framesMsg is sent once every key-frame has resolved.
type framesMsg struct{}

// Model follows one session's pipeline and shows the result when it
// completes. The run starts as soon as the program does; r retries a
// failed run and q quits.
type Model struct {
	ctx     context.Context
	session *session.Session
	bridge  *Bridge
	name    string

	spinner  spinner.Model
	progress progress.Model

	state    models.ProcessingState
	percent  int
	status   string
	err      error
	parsed   *models.ParsedAnalysis
	raw      string
	finished bool
	quitting bool
}

// NewModel creates the model. The session must have been created with
// bridge as its listener and have a video selected.
func NewModel(ctx context.Context, s *session.Session, bridge *Bridge) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	name := ""
	if asset := s.Asset(); asset != nil {
		name = asset.Name
	}

	return Model{
		ctx:      ctx,
		session:  s,
		bridge:   bridge,
		name:     name,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		state:    models.Idle,
	}
}

// Init starts the run and begins listening for pipeline events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.bridge.Listen(),
		m.run(m.session.Start),
	)
}

func (m Model) run(start func(context.Context) error) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		if err := start(ctx); err != nil {
			return runDoneMsg{err: err, rejected: true}
		}
		return runDoneMsg{err: s.Wait()}
	}
}

func (m Model) loadFrames() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		if err := s.LoadFrames(ctx); err != nil {
			return framesMsg{}
		}
		s.WaitFrames()
		return framesMsg{}
	}
}

// Update handles keys, pipeline events and run completion.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			m.bridge.Close()
			return m, tea.Quit
		case "r":
			if m.state == models.Error {
				m.err = nil
				m.status = "Retrying..."
				return m, m.run(m.session.Retry)
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.progress.Width = min(max(msg.Width-4, 10), progressWidth)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TransitionMsg:
		m.state = msg.To
		if msg.To == models.Error {
			m.err = msg.Err
		}
		m.status = stateStatus(msg.To)
		return m, m.bridge.Listen()

	case ProgressMsg:
		m.percent = int(msg)
		return m, m.bridge.Listen()

	case StatusMsg:
		m.status = string(msg)
		return m, m.bridge.Listen()

	case runDoneMsg:
		if msg.rejected {
			if errors.Is(msg.err, pipeline.ErrBusy) {
				m.status = "A run is already in progress"
				return m, nil
			}
			m.err = msg.err
			return m, nil
		}
		if msg.err != nil {
			m.state = models.Error
			m.err = msg.err
			return m, nil
		}
		return m.complete()

	case framesMsg:
		m.finished = true
		m.bridge.Close()
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) complete() (tea.Model, tea.Cmd) {
	m.state = models.Complete
	m.percent = 100
	m.status = "Analysis complete"

	parsed, err := m.session.Analysis()
	switch {
	case errors.Is(err, parser.ErrUnstructured):
		m.raw, _ = m.session.Document()
		m.finished = true
		m.bridge.Close()
		return m, tea.Quit
	case err != nil:
		m.err = err
		return m, nil
	}

	m.parsed = parsed
	m.status = "Extracting key-frames..."
	return m, m.loadFrames()
}

// View renders the current state.
func (m Model) View() string {
	var b strings.Builder

	title := "videolens"
	if m.name != "" {
		title += " · " + m.name
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	switch {
	case m.raw != "":
		b.WriteString(Raw(m.raw))
		return b.String()
	case m.parsed != nil:
		if !m.finished {
			b.WriteString(spinnerStyle.Render(m.spinner.View()) + " " + statusStyle.Render(m.status) + "\n\n")
		}
		b.WriteString(Render(m.parsed, m.session.Frames()))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render("✗ "+m.err.Error()) + "\n")
		if m.state == models.Error {
			b.WriteString(statusStyle.Render("r retry · q quit") + "\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), statusStyle.Render(m.status))
	b.WriteString(m.progress.ViewAs(float64(m.percent)/100) + "\n")
	if !m.quitting {
		b.WriteString(statusStyle.Render("q quit") + "\n")
	}
	return b.String()
}

// State is the last pipeline state the model saw.
func (m Model) State() models.ProcessingState { return m.state }

// Err is the error that ended the run, if any.
func (m Model) Err() error { return m.err }

// Finished reports whether the analysis was shown in full.
func (m Model) Finished() bool { return m.finished }

func stateStatus(state models.ProcessingState) string {
	switch state {
	case models.Compressing:
		return "Compressing video..."
	case models.Encoding:
		return "Encoding video..."
	case models.Analyzing:
		return "Analyzing video..."
	case models.Complete:
		return "Analysis complete"
	case models.Error:
		return "Failed"
	}
	return "Waiting..."
}

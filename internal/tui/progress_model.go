package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/specforge/specforge/internal/engine"
)

// ProgressState represents the current state of the progress TUI.
type ProgressState int

const (
	// ProgressStateRunning indicates generation is in progress.
	ProgressStateRunning ProgressState = iota
	// ProgressStateDone indicates the run finished and final metrics arrived.
	ProgressStateDone
	// ProgressStateQuitting indicates the user cancelled the run.
	ProgressStateQuitting
)

// Messages delivered by ProgramObserver, one per engine notification.
type (
	runStartedMsg     struct{ plan engine.RunPlan }
	batchCompletedMsg struct {
		result   engine.BatchResult
		progress engine.ProgressSnapshot
	}
	chunkDeliveredMsg struct{ chunk engine.ChunkStat }
	memoryPressureMsg struct{ warning engine.MemoryWarning }
	runCompletedMsg   struct{ metrics engine.Metrics }
)

// Default dimensions for the progress model.
const (
	progressDefaultWidth = 80
	progressBarWidth     = 40
	recentBatchLimit     = 5
)

// ProgressModel is the Bubble Tea model for live generation progress.
type ProgressModel struct {
	// Run context
	plan     engine.RunPlan
	snapshot engine.ProgressSnapshot
	metrics  engine.Metrics

	// Rolling display state
	recent        []string
	chunks        int
	lastWarning   *engine.MemoryWarning
	warningCount  int
	failedBatches int
	cachedBatches int

	// State management
	state  ProgressState
	cancel context.CancelFunc

	// Components
	spin spinner.Model
	bar  progress.Model

	// Display dimensions
	width int
}

// NewProgressModel creates a ProgressModel. cancel, when non-nil, is invoked
// if the user quits mid-run so the engine run stops with the display.
func NewProgressModel(cancel context.CancelFunc) *ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorHeader)

	return &ProgressModel{
		state:  ProgressStateRunning,
		cancel: cancel,
		spin:   s,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarWidth)),
		width:  progressDefaultWidth,
	}
}

// Init initializes the model.
func (m *ProgressModel) Init() tea.Cmd {
	return m.spin.Tick
}

// Update handles messages and updates the model state.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case runStartedMsg:
		m.plan = msg.plan
		return m, nil

	case batchCompletedMsg:
		m.snapshot = msg.progress
		switch {
		case msg.result.Failed():
			m.failedBatches++
		case msg.result.FromCache:
			m.cachedBatches++
		}
		m.recent = append(m.recent, RenderBatchLine(msg.result))
		if len(m.recent) > recentBatchLimit {
			m.recent = m.recent[len(m.recent)-recentBatchLimit:]
		}
		return m, nil

	case chunkDeliveredMsg:
		m.chunks = msg.chunk.Index + 1
		return m, nil

	case memoryPressureMsg:
		warning := msg.warning
		m.lastWarning = &warning
		m.warningCount++
		return m, nil

	case runCompletedMsg:
		m.metrics = msg.metrics
		m.state = ProgressStateDone
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyMsg processes keyboard input.
//
//nolint:exhaustive // Only quit keys are relevant while a run is active.
func (m *ProgressModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()

	case tea.KeyRunes:
		if string(msg.Runes) == "q" {
			return m.quit()
		}
	}

	return m, nil
}

// quit cancels the run and exits the program.
func (m *ProgressModel) quit() (tea.Model, tea.Cmd) {
	m.state = ProgressStateQuitting
	if m.cancel != nil {
		m.cancel()
	}
	return m, tea.Quit
}

// View renders the current view.
func (m *ProgressModel) View() string {
	switch m.state {
	case ProgressStateQuitting:
		return cancelStyle.Render("Cancelling generation...") + "\n"

	case ProgressStateDone:
		return RenderFinalLine(m.metrics, m.failedBatches) + "\n"

	case ProgressStateRunning:
		// Handled below
	}

	return m.renderRunningView()
}

// renderRunningView renders the live progress display.
func (m *ProgressModel) renderRunningView() string {
	var output string

	output += RenderRunHeader(m.plan)
	output += "\n\n"

	output += m.spin.View()
	output += RenderActivityLine(m.plan, m.snapshot, m.chunks)
	output += "\n"

	output += m.bar.ViewAs(m.snapshot.PercentComplete / 100)
	output += "\n\n"

	output += RenderCountsLine(m.snapshot, m.failedBatches, m.cachedBatches)
	output += "\n"

	if m.lastWarning != nil {
		output += RenderMemoryWarning(*m.lastWarning, m.warningCount)
		output += "\n"
	}

	if len(m.recent) > 0 {
		output += "\n"
		for _, line := range m.recent {
			output += line + "\n"
		}
	}

	output += "\n"
	output += helpStyle.Render("press q to cancel")
	output += "\n"

	return output
}

// State returns the current model state.
func (m *ProgressModel) State() ProgressState {
	return m.state
}

// Metrics returns the final run metrics. Only meaningful once State is
// ProgressStateDone.
func (m *ProgressModel) Metrics() engine.Metrics {
	return m.metrics
}

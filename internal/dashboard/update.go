package dashboard

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/flowforge/flowforge/internal/engine"
)

// Update handles bubbletea messages: window resizes, quit keys, spinner
// ticks, and the two Feed message kinds. A step-progress message re-arms
// its wait command so the model keeps draining the progress channel for the
// life of the run; the summary arrives once and is not re-armed.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stepProgressMsg:
		m.upsert(engine.StepProgress(msg))
		return m, m.feed.waitProgress()

	case summaryMsg:
		s := engine.PipelineSummary(msg)
		m.summary = &s
		return m, nil
	}
	return m, nil
}

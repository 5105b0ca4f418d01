package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/flowforge/flowforge/internal/engine"
)

// Feed bridges the Scheduler's synchronous, non-blocking ProgressFunc/
// SummaryFunc callbacks (called from whichever goroutine is executing a
// step) into bubbletea's message-pump model: each callback pushes onto a
// buffered channel; waitProgress/waitSummary are tea.Cmds that block on
// that channel. Update re-arms waitProgress after each progress message,
// the standard bubbletea pattern for an external event source (see
// bubbletea's own realtime examples); waitSummary is issued once, from Init.
type Feed struct {
	progress chan engine.StepProgress
	summary  chan engine.PipelineSummary
}

// NewFeed builds a Feed with enough buffer that a burst of step
// transitions never blocks the scheduler's worker goroutines on a slow UI
// frame.
func NewFeed() *Feed {
	return &Feed{
		progress: make(chan engine.StepProgress, 256),
		summary:  make(chan engine.PipelineSummary, 1),
	}
}

// OnProgress satisfies engine.ProgressFunc.
func (f *Feed) OnProgress(p engine.StepProgress) {
	select {
	case f.progress <- p:
	default:
		// Drop rather than block a scheduler worker; the dashboard is a
		// best-effort view, never the run's source of truth.
	}
}

// OnSummary satisfies engine.SummaryFunc.
func (f *Feed) OnSummary(s engine.PipelineSummary) {
	select {
	case f.summary <- s:
	default:
	}
}

type stepProgressMsg engine.StepProgress
type summaryMsg engine.PipelineSummary

func (f *Feed) waitProgress() tea.Cmd {
	return func() tea.Msg {
		return stepProgressMsg(<-f.progress)
	}
}

func (f *Feed) waitSummary() tea.Cmd {
	return func() tea.Msg {
		return summaryMsg(<-f.summary)
	}
}

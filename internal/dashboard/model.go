// Package dashboard renders a running pipeline's step-by-step progress as
// a bubbletea TUI. It is an adaptation of the teacher's
// internal/tui/dashboard (a multi-pipeline install-status browser with
// list/detail views and confirm dialogs) into a single-pipeline live
// progress view: this domain has one thing to watch per invocation — a run
// in flight — not a catalog of pipelines to browse, so the list/detail/
// confirm machinery has no equivalent here and was not carried over.
package dashboard

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/flowforge/flowforge/internal/engine"
	"github.com/flowforge/flowforge/internal/workflow/state"
)

// stepRow is the dashboard's view of one step's progress.
type stepRow struct {
	name       string
	status     state.Status
	err        error
	groupName  string
	stepNumber int
	totalSteps int
}

// Model is the dashboard's bubbletea model.
type Model struct {
	feed *Feed

	taskID string
	rows   map[string]*stepRow
	order  []string

	summary   *engine.PipelineSummary
	startedAt time.Time

	spinner spinner.Model
	width   int
	height  int
	quitting bool
}

// NewModel builds a Model driven by feed. taskID is shown in the header.
func NewModel(feed *Feed, taskID string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		feed:      feed,
		taskID:    taskID,
		rows:      make(map[string]*stepRow),
		spinner:   s,
		startedAt: time.Now(),
		width:     80,
		height:    24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.feed.waitProgress(), m.feed.waitSummary())
}

func (m *Model) upsert(p engine.StepProgress) {
	row, ok := m.rows[p.StepName]
	if !ok {
		row = &stepRow{name: p.StepName}
		m.rows[p.StepName] = row
		m.order = append(m.order, p.StepName)
	}
	row.status = p.Status
	row.err = p.Err
	row.groupName = p.GroupName
	row.stepNumber = p.StepNumber
	row.totalSteps = p.TotalSteps
	if !ok {
		sort.Slice(m.order, func(i, j int) bool {
			return m.rows[m.order[i]].stepNumber < m.rows[m.order[j]].stepNumber
		})
	}
}

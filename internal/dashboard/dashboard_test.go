package dashboard

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/internal/engine"
	"github.com/flowforge/flowforge/internal/workflow/state"
)

func TestModelUpsertOrdersRowsByStepNumber(t *testing.T) {
	t.Parallel()
	m := NewModel(NewFeed(), "task-1")

	m.upsert(engine.StepProgress{StepName: "b", Status: state.Running, StepNumber: 2})
	m.upsert(engine.StepProgress{StepName: "a", Status: state.Completed, StepNumber: 1})

	require.Equal(t, []string{"a", "b"}, m.order)
}

func TestUpdateHandlesStepProgressAndRearmsWait(t *testing.T) {
	t.Parallel()
	m := NewModel(NewFeed(), "task-1")

	updated, cmd := m.Update(stepProgressMsg(engine.StepProgress{StepName: "a", Status: state.Failed, Err: errors.New("boom")}))
	mm := updated.(Model)
	require.Equal(t, state.Failed, mm.rows["a"].status)
	require.NotNil(t, cmd)
}

func TestUpdateHandlesSummary(t *testing.T) {
	t.Parallel()
	m := NewModel(NewFeed(), "task-1")

	updated, _ := m.Update(summaryMsg(engine.PipelineSummary{TaskID: "task-1", Completed: []string{"a"}}))
	mm := updated.(Model)
	require.NotNil(t, mm.summary)
	require.Equal(t, []string{"a"}, mm.summary.Completed)
}

func TestUpdateQuitsOnKey(t *testing.T) {
	t.Parallel()
	m := NewModel(NewFeed(), "task-1")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
}

func TestViewRendersWithoutPanicking(t *testing.T) {
	t.Parallel()
	m := NewModel(NewFeed(), "task-1")
	m.upsert(engine.StepProgress{StepName: "a", Status: state.Running})
	require.NotPanics(t, func() {
		_ = m.View()
	})
}

func TestFeedOnProgressIsNonBlockingUnderBurst(t *testing.T) {
	t.Parallel()
	f := NewFeed()
	for i := 0; i < 1000; i++ {
		f.OnProgress(engine.StepProgress{StepName: "x"})
	}
	f.OnSummary(engine.PipelineSummary{})
}

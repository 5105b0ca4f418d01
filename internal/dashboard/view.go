package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/flowforge/flowforge/internal/workflow/state"
)

func (m Model) View() string {
	var b strings.Builder

	title := fmt.Sprintf("flowforge — task %s", m.taskID)
	if m.summary == nil {
		title = m.spinner.View() + " " + title
	}
	b.WriteString(headerStyle.Width(m.width).Render(title))
	b.WriteString("\n")

	for _, name := range m.order {
		row := m.rows[name]
		b.WriteString(m.renderRow(row))
		b.WriteString("\n")
	}
	if len(m.order) == 0 {
		b.WriteString("waiting for the first step to start...\n")
	}

	b.WriteString(footerStyle.Width(m.width).Render(m.renderFooter()))
	return b.String()
}

func (m Model) renderRow(row *stepRow) string {
	icon := statusIcon(row.status)
	label := statusStyle(row.status).Render(fmt.Sprintf("%-9s", row.status))
	line := fmt.Sprintf("  %s %s  %s", icon, label, row.name)
	if row.groupName != "" {
		line += fmt.Sprintf("  [%s]", row.groupName)
	}
	if row.err != nil {
		line += "  " + statusFailedStyle.Render(row.err.Error())
	}
	return line
}

func statusIcon(status state.Status) string {
	switch status {
	case state.Running:
		return "●"
	case state.Completed:
		return "✔"
	case state.Failed:
		return "✘"
	case state.Suspended:
		return "⏸"
	case state.Skipped:
		return "–"
	default:
		return "○"
	}
}

func (m Model) renderFooter() string {
	elapsed := time.Since(m.startedAt).Round(time.Second)
	if m.summary == nil {
		return fmt.Sprintf("running for %s — press q to detach (the run keeps going)", elapsed)
	}
	return fmt.Sprintf(
		"done in %s — completed=%d failed=%d skipped=%d suspended=%d — press q to exit",
		elapsed, len(m.summary.Completed), len(m.summary.Failed), len(m.summary.Skipped), len(m.summary.Suspended),
	)
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kqclabs/kqc/internal/ledger"
)

func (m Model) View() string {
	header := titleStyle.Render("⚛ "+m.bundle) + dimStyle.Render(" · simulation run")
	body := m.table.View()
	footer := m.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer) + "\n"
}

func (m Model) renderCell(c *cell) string {
	switch c.status {
	case ledger.StatusRunning:
		return m.spin.View() + runningStyle.Render(" running")
	case ledger.StatusOK:
		return okStyle.Render("✔ " + formatDuration(c.elapsed))
	case ledger.StatusFailed:
		return failStyle.Render("✖ " + formatDuration(c.elapsed))
	case ledger.StatusSkipped:
		return skipStyle.Render("⊘ skipped")
	default:
		return dimStyle.Render("· pending")
	}
}

func (m Model) renderFooter() string {
	if !m.done {
		settled, total := m.progress()
		return dimStyle.Render(fmt.Sprintf(" %d/%d phases · %s · q to cancel",
			settled, total, formatDuration(time.Since(m.started))))
	}
	if m.summary == nil {
		if m.runErr != nil {
			return failStyle.Render(" " + firstLine(m.runErr.Error()))
		}
		return ""
	}

	parts := []string{okStyle.Render(fmt.Sprintf("✔ %d ok", m.summary.OK))}
	if m.summary.Failed > 0 {
		parts = append(parts, failStyle.Render(fmt.Sprintf("✖ %d failed", m.summary.Failed)))
	}
	if m.summary.Skipped > 0 {
		parts = append(parts, skipStyle.Render(fmt.Sprintf("⊘ %d skipped", m.summary.Skipped)))
	}
	line := " " + strings.Join(parts, "  ") + dimStyle.Render("  in "+formatDuration(m.summary.Elapsed))
	if m.canceled {
		line += failStyle.Render("  (canceled)")
	}
	if m.runErr != nil {
		line += "\n" + failStyle.Render(" "+firstLine(m.runErr.Error()))
	}
	return line
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	return d.Round(time.Second).String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.canceled = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		m.refreshRows()
		return m, cmd

	case eventMsg:
		if c := m.cells[msg.Simulation][msg.Phase]; c != nil {
			c.status = msg.Status
			c.err = msg.Err
			c.elapsed = msg.Elapsed
		}
		m.refreshRows()
		return m, nil

	case doneMsg:
		m.summary = msg.summary
		m.runErr = msg.err
		m.done = true
		m.refreshRows()
		return m, tea.Quit
	}

	return m, nil
}

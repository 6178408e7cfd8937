// Package tui renders the live dashboard kqc simulate shows while the
// local runner works through a bundle: one row per simulation, one
// column per phase.
package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kqclabs/kqc/internal/ledger"
	"github.com/kqclabs/kqc/internal/runner"
)

// eventMsg carries one runner event into the program.
type eventMsg runner.Event

// doneMsg reports the runner's outcome.
type doneMsg struct {
	summary *runner.Summary
	err     error
}

// cell is the dashboard state of one simulation phase.
type cell struct {
	status  string
	err     string
	elapsed time.Duration
}

// Model is the dashboard state.
type Model struct {
	bundle string
	sims   []string
	phases []string
	cells  map[string]map[string]*cell

	spin  spinner.Model
	table table.Model

	started  time.Time
	summary  *runner.Summary
	runErr   error
	done     bool
	canceled bool
}

func newModel(bundleName string, sims, phases []string) Model {
	m := Model{
		bundle:  bundleName,
		sims:    sims,
		phases:  phases,
		cells:   make(map[string]map[string]*cell, len(sims)),
		started: time.Now(),
	}
	for _, sim := range sims {
		m.cells[sim] = make(map[string]*cell, len(phases))
		for _, phase := range phases {
			m.cells[sim][phase] = &cell{status: ledger.StatusPending}
		}
	}

	m.spin = spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(runningStyle))

	simWidth := len("SIMULATION")
	for _, sim := range sims {
		if len(sim) > simWidth {
			simWidth = len(sim)
		}
	}
	cols := []table.Column{{Title: "SIMULATION", Width: simWidth + 2}}
	for _, phase := range phases {
		cols = append(cols, table.Column{Title: strings.ToUpper(phase), Width: 14})
	}
	m.table = table.New(table.WithColumns(cols), table.WithHeight(len(sims)))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(accentFg)
	// Not an interactive table; no row highlight.
	styles.Selected = lipgloss.NewStyle()
	m.table.SetStyles(styles)
	m.refreshRows()

	return m
}

func (m Model) Init() tea.Cmd { return m.spin.Tick }

// refreshRows rebuilds the table rows from the cell states.
func (m *Model) refreshRows() {
	rows := make([]table.Row, 0, len(m.sims))
	for _, sim := range m.sims {
		row := table.Row{sim}
		for _, phase := range m.phases {
			row = append(row, m.renderCell(m.cells[sim][phase]))
		}
		rows = append(rows, row)
	}
	m.table.SetRows(rows)
}

// progress counts settled phases.
func (m Model) progress() (settled, total int) {
	for _, sim := range m.sims {
		for _, phase := range m.phases {
			total++
			switch m.cells[sim][phase].status {
			case ledger.StatusOK, ledger.StatusFailed, ledger.StatusSkipped:
				settled++
			}
		}
	}
	return settled, total
}

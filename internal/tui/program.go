package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kqclabs/kqc/internal/runner"
)

// Options describe one dashboard-driven run.
type Options struct {
	BundleName  string
	Simulations []string
	Runner      runner.Options
}

type runResult struct {
	summary *runner.Summary
	err     error
}

// Run executes the bundle's simulations under a live dashboard and
// returns the runner's summary once everything settles. Pressing q
// cancels the remaining phases; the summary still reflects whatever
// finished before the cancellation.
func Run(ctx context.Context, opts Options) (*runner.Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(opts.BundleName, opts.Simulations, opts.Runner.Phases))

	ro := opts.Runner
	ro.OnEvent = func(ev runner.Event) { p.Send(eventMsg(ev)) }
	r := runner.New(ro)

	results := make(chan runResult, 1)
	go func() {
		summary, err := r.Run(runCtx, opts.Simulations)
		results <- runResult{summary, err}
		p.Send(doneMsg{summary: summary, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-results
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	if m, ok := final.(Model); ok && m.canceled {
		cancel()
	}

	res := <-results
	return res.summary, res.err
}

package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

// runRuns lists the most recent ledger runs, newest first.
func (a *App) runRuns(ctx context.Context) error {
	runs, err := a.ledger.ListRuns(ctx, a.config.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.outW, "No runs recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.outW, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKIND\tSTATUS\tSCRIPT\tBUNDLE\tDURATION")
	for _, r := range runs {
		bundle := r.BundleDir
		if bundle == "" {
			bundle = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Kind, r.Status, r.Script, bundle,
			r.Duration().Round(time.Second),
		)
	}
	return tw.Flush()
}

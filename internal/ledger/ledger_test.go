package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "kqc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("starts, attaches a bundle, and finishes", func(t *testing.T) {
		// Arrange
		l := openLedger(t)

		// Act
		run, err := l.StartRun(ctx, KindSimulate, "chip.py")
		require.NoError(t, err)
		require.NoError(t, l.AttachBundle(ctx, run.ID, "xmons", "elmer", "/tmp/xmons_output", ""))
		require.NoError(t, l.FinishRun(ctx, run.ID, StatusOK, ""))

		// Assert
		got, err := l.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, KindSimulate, got.Kind)
		assert.Equal(t, "chip.py", got.Script)
		assert.Equal(t, "xmons", got.Name)
		assert.Equal(t, "elmer", got.Tool)
		assert.Equal(t, "/tmp/xmons_output", got.BundleDir)
		assert.Equal(t, StatusOK, got.Status)
		require.NotNil(t, got.FinishedAt)
		assert.False(t, got.FinishedAt.Before(got.StartedAt))
		assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
	})

	t.Run("keeps the error text only on failure", func(t *testing.T) {
		l := openLedger(t)
		failed, err := l.StartRun(ctx, KindMask, "mask.py")
		require.NoError(t, err)
		passed, err := l.StartRun(ctx, KindMask, "mask.py")
		require.NoError(t, err)

		require.NoError(t, l.FinishRun(ctx, failed.ID, StatusFailed, "klayout exited 1"))
		require.NoError(t, l.FinishRun(ctx, passed.ID, StatusOK, "ignored"))

		gotFailed, err := l.GetRun(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, "klayout exited 1", gotFailed.Error)
		gotPassed, err := l.GetRun(ctx, passed.ID)
		require.NoError(t, err)
		assert.Empty(t, gotPassed.Error)
	})

	t.Run("latest run wins on start time", func(t *testing.T) {
		l := openLedger(t)
		_, err := l.StartRun(ctx, KindSim, "first.py")
		require.NoError(t, err)
		second, err := l.StartRun(ctx, KindSim, "second.py")
		require.NoError(t, err)

		latest, err := l.LatestRun(ctx)

		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.Equal(t, "second.py", latest.Script)
	})

	t.Run("empty ledger has no latest run", func(t *testing.T) {
		l := openLedger(t)

		_, err := l.LatestRun(ctx)

		require.ErrorIs(t, err, ErrNoRun)
	})

	t.Run("touching an unknown run fails", func(t *testing.T) {
		l := openLedger(t)

		require.ErrorIs(t, l.FinishRun(ctx, "nope", StatusOK, ""), ErrNoRun)
		require.ErrorIs(t, l.AttachBundle(ctx, "nope", "n", "t", "d", ""), ErrNoRun)
	})

	t.Run("lists newest first with a limit", func(t *testing.T) {
		l := openLedger(t)
		for _, script := range []string{"a.py", "b.py", "c.py"} {
			_, err := l.StartRun(ctx, KindSimulate, script)
			require.NoError(t, err)
		}

		runs, err := l.ListRuns(ctx, 2)

		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "c.py", runs[0].Script)
		assert.Equal(t, "b.py", runs[1].Script)
	})
}

func TestJobs(t *testing.T) {
	ctx := context.Background()

	startRun := func(t *testing.T, l *Ledger) *Run {
		t.Helper()
		run, err := l.StartRun(ctx, KindSimulate, "chip.py")
		require.NoError(t, err)
		return run
	}

	t.Run("plans the full phase grid", func(t *testing.T) {
		// Arrange
		l := openLedger(t)
		run := startRun(t, l)

		// Act
		jobs, err := l.PlanJobs(ctx, run.ID, []string{"xmons_1", "xmons_2"}, []string{"mesh", "solve"})

		// Assert
		require.NoError(t, err)
		require.Len(t, jobs, 4)
		stored, err := l.JobsForRun(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, stored, 4)
		assert.Equal(t, "xmons_1", stored[0].Simulation)
		assert.Equal(t, "mesh", stored[0].Phase)
		assert.Equal(t, StatusPending, stored[0].Status)
		assert.Equal(t, "xmons_1", stored[1].Simulation)
		assert.Equal(t, "solve", stored[1].Phase)
	})

	t.Run("tracks a job through its lifecycle", func(t *testing.T) {
		l := openLedger(t)
		run := startRun(t, l)
		jobs, err := l.PlanJobs(ctx, run.ID, []string{"xmons_1"}, []string{"mesh"})
		require.NoError(t, err)

		require.NoError(t, l.StartJob(ctx, jobs[0].ID))
		require.NoError(t, l.FinishJob(ctx, jobs[0].ID, StatusFailed, "gmsh exited 1"))

		stored, err := l.JobsForRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, stored[0].Status)
		assert.Equal(t, "gmsh exited 1", stored[0].Error)
		assert.NotNil(t, stored[0].StartedAt)
		assert.NotNil(t, stored[0].FinishedAt)
	})

	t.Run("clears error text on success", func(t *testing.T) {
		l := openLedger(t)
		run := startRun(t, l)
		jobs, err := l.PlanJobs(ctx, run.ID, []string{"xmons_1"}, []string{"mesh"})
		require.NoError(t, err)

		require.NoError(t, l.FinishJob(ctx, jobs[0].ID, StatusOK, "ignored"))

		stored, err := l.JobsForRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Empty(t, stored[0].Error)
	})

	t.Run("records batch submissions", func(t *testing.T) {
		l := openLedger(t)
		run := startRun(t, l)
		jobs, err := l.PlanJobs(ctx, run.ID, []string{"xmons_1"}, []string{"mesh", "solve"})
		require.NoError(t, err)

		require.NoError(t, l.MarkSubmitted(ctx, jobs[0].ID, "4242"))

		stored, err := l.JobsForRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusSubmitted, stored[0].Status)
		assert.Equal(t, "4242", stored[0].SlurmID)
	})
}

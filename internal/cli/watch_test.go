package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sluice/internal/store"
)

func execWatch(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewWatchCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func TestWatchDrainsGroup(t *testing.T) {
	requirePOSIX(t)
	planPath := writePlanFile(t, sweepPlanCUE)
	db := tempDB(t)

	type watchResult struct {
		output string
		err    error
	}
	done := make(chan watchResult, 1)
	go func() {
		output, err := execWatch(t, context.Background(),
			"--plan", planPath, "--db", db, "--every", "50ms")
		done <- watchResult{output, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.output, "Watching sweep")
		assert.Contains(t, res.output, "Group sweep drained.")
	case <-time.After(30 * time.Second):
		t.Fatal("watch did not drain the group")
	}

	// All three units submitted and sealed across cycles.
	st := openLedger(t, db)
	recs, err := st.Records(context.Background(), "sweep")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.True(t, rec.Sealed, "unit %s should be sealed", rec.Key)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	requirePOSIX(t)
	planPath := writePlanFile(t, `
plan: {
	group:      "slow"
	max_active: 1
	schema: ["index"]
	command: argv: ["true"]
	units: [[1], [2], [3]]
}
`)
	db := tempDB(t)

	// A long interval: the first cycle runs, then the watcher sits in
	// the tick select until the context expires.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := execWatch(t, ctx, "--plan", planPath, "--db", db, "--every", "1h")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	st := openLedger(t, db)
	recs, err := st.Records(context.Background(), "slow")
	require.NoError(t, err)
	assert.Len(t, recs, 1, "only the first cycle should have submitted")
}

func TestWatchSealFreesCapacity(t *testing.T) {
	requirePOSIX(t)
	// Ceiling of one: draining three units needs three cycles, each
	// enabled by the previous unit's seal.
	planPath := writePlanFile(t, `
plan: {
	group:      "narrow"
	max_active: 1
	schema: ["index"]
	command: argv: ["true"]
	units: [[1], [2], [3]]
}
`)
	db := tempDB(t)

	done := make(chan error, 1)
	go func() {
		_, err := execWatch(t, context.Background(),
			"--plan", planPath, "--db", db, "--every", "50ms")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("watch did not drain the group")
	}

	st := openLedger(t, db)
	assertAllSealed(t, st, "narrow", 3)
}

func assertAllSealed(t *testing.T, st *store.Store, group string, want int) {
	t.Helper()
	recs, err := st.Records(context.Background(), group)
	require.NoError(t, err)
	require.Len(t, recs, want)
	for _, rec := range recs {
		assert.True(t, rec.Sealed, "unit %s should be sealed", rec.Key)
	}
}

package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execSeed(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewSeedCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSeedPersistsUnits(t *testing.T) {
	planPath := writePlanFile(t, sweepPlanCUE)
	db := tempDB(t)

	output, err := execSeed(t, "text", "--plan", planPath, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ seeded 3 unit(s) for sweep")

	st := openLedger(t, db)
	units, err := st.Units(context.Background(), "sweep")
	require.NoError(t, err)
	assert.Len(t, units, 3)
}

func TestSeedIsIdempotent(t *testing.T) {
	planPath := writePlanFile(t, sweepPlanCUE)
	db := tempDB(t)

	_, err := execSeed(t, "text", "--plan", planPath, "--db", db)
	require.NoError(t, err)

	output, err := execSeed(t, "text", "--plan", planPath, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ seeded 0 unit(s) for sweep (3 already present)")

	st := openLedger(t, db)
	units, err := st.Units(context.Background(), "sweep")
	require.NoError(t, err)
	assert.Len(t, units, 3)
}

func TestSeedRejectsPlanWithoutUnits(t *testing.T) {
	planPath := writePlanFile(t, `
plan: {
	group:      "empty"
	max_active: 1
	schema: ["index"]
	command: argv: ["true"]
}
`)
	output, err := execSeed(t, "text", "--plan", planPath, "--db", tempDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "no units")
}

func TestSeedJSON(t *testing.T) {
	planPath := writePlanFile(t, sweepPlanCUE)
	db := tempDB(t)

	output, err := execSeed(t, "json", "--plan", planPath, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, `"status":"ok"`)
	assert.Contains(t, output, `"added":3`)
}

// Seeded units serve as the catalog for a plan without inline units.
func TestSeededCatalogDrivesSubmit(t *testing.T) {
	requirePOSIX(t)
	db := tempDB(t)

	seedPlan := writePlanFile(t, sweepPlanCUE)
	_, err := execSeed(t, "text", "--plan", seedPlan, "--db", db)
	require.NoError(t, err)

	// Same group and schema, no units block: the catalog comes from
	// the seeded rows.
	runPlan := writePlanFile(t, `
plan: {
	group:      "sweep"
	max_active: 2
	schema: ["prefix", "index"]
	command: argv: ["true"]
}
`)
	output, err := execSubmit(t, "text", "--plan", runPlan, "--db", db, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, output, "Would submit 2 unit(s) (pending 3, free 2)")
}

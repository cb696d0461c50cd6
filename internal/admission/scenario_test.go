package admission

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sluice/internal/ident"
	"github.com/roach88/sluice/internal/store"
)

// scenario drives one controller through a sequence of batches against
// an in-memory ledger and asserts what each batch did.
type scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Group, MaxActive, and Schema become the controller Config.
	Group     string   `yaml:"group"`
	MaxActive int      `yaml:"max_active"`
	Schema    []string `yaml:"schema"`

	// Catalog lists the target identities, one scalar list per key, in
	// enumeration order.
	Catalog [][]any `yaml:"catalog"`

	// Recorded pre-populates the ledger before the first batch.
	Recorded []recordedUnit `yaml:"recorded,omitempty"`

	// FailStart lists identities the engine refuses to start.
	FailStart [][]any `yaml:"fail_start,omitempty"`

	// FailPayload lists identities whose payload construction fails.
	FailPayload [][]any `yaml:"fail_payload,omitempty"`

	// Batches are the SubmitBatch calls to make, in order.
	Batches []batchStep `yaml:"batches"`
}

type recordedUnit struct {
	Key    []any  `yaml:"key"`
	Handle string `yaml:"handle"`
	Sealed bool   `yaml:"sealed,omitempty"`
}

type batchStep struct {
	// DryRun previews the batch instead of running it.
	DryRun bool `yaml:"dry_run,omitempty"`

	// SealFirst seals these identities before the batch runs,
	// simulating units that finished in the meantime.
	SealFirst [][]any `yaml:"seal_first,omitempty"`

	// Submitted is the expected list of submitted identities, in
	// submission order. Omitted means none.
	Submitted [][]any `yaml:"submitted,omitempty"`

	// Selected is the expected dry-run selection, in order.
	Selected [][]any `yaml:"selected,omitempty"`

	// Failed is the expected list of failed identities, in order.
	Failed [][]any `yaml:"failed,omitempty"`

	// Optional snapshot assertions.
	Free        *int `yaml:"free,omitempty"`
	Pending     *int `yaml:"pending,omitempty"`
	ActiveAfter *int `yaml:"active_after,omitempty"`
}

// loadScenario reads and parses a scenario YAML file with strict field
// validation, so a typo in a fixture fails loudly instead of silently
// weakening the test.
func loadScenario(t *testing.T, path string) *scenario {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "read scenario file")

	var sc scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	require.NoError(t, decoder.Decode(&sc), "parse %s", path)

	require.NotEmpty(t, sc.Name, "%s: name is required", path)
	require.NotEmpty(t, sc.Description, "%s: description is required", path)
	require.NotEmpty(t, sc.Group, "%s: group is required", path)
	require.Greater(t, sc.MaxActive, 0, "%s: max_active must be positive", path)
	require.NotEmpty(t, sc.Schema, "%s: schema is required", path)
	require.NotEmpty(t, sc.Batches, "%s: batches list is required", path)

	return &sc
}

// scenarioKey converts a YAML scalar list into a key.
func scenarioKey(t *testing.T, raw []any) ident.Key {
	t.Helper()
	fields := make([]ident.Field, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case string:
			fields[i] = ident.S(x)
		case int:
			fields[i] = ident.I(int64(x))
		case bool:
			fields[i] = ident.B(x)
		default:
			t.Fatalf("scenario key %v: unsupported field type %T", raw, v)
		}
	}
	return ident.Of(fields...)
}

func scenarioCanons(t *testing.T, raws [][]any) []string {
	t.Helper()
	canons := []string{}
	for _, raw := range raws {
		canons = append(canons, scenarioKey(t, raw).MustCanon())
	}
	return canons
}

func runScenario(t *testing.T, sc *scenario) {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	for _, r := range sc.Recorded {
		key := scenarioKey(t, r.Key)
		require.NoError(t, mem.Record(ctx, key, r.Handle))
		if r.Sealed {
			require.True(t, mem.SealKey(key))
		}
	}

	keys := make([]ident.Key, len(sc.Catalog))
	for i, raw := range sc.Catalog {
		keys[i] = scenarioKey(t, raw)
	}

	eng := &stubEngine{fail: map[string]error{}}
	for _, raw := range sc.FailStart {
		eng.fail[scenarioKey(t, raw).MustCanon()] = errors.New("engine refused unit")
	}

	failPayload := map[string]bool{}
	for _, raw := range sc.FailPayload {
		failPayload[scenarioKey(t, raw).MustCanon()] = true
	}
	factory := FactoryFunc(func(_ context.Context, key ident.Key) (any, error) {
		if failPayload[key.MustCanon()] {
			return nil, errors.New("payload unavailable")
		}
		return key, nil
	})

	c, err := New(
		Config{Group: sc.Group, MaxActive: sc.MaxActive, Schema: ident.NewSchema(sc.Schema...)},
		&stubCatalog{keys: keys}, mem, factory, eng,
		WithLogger(discardLogger()))
	require.NoError(t, err)

	for i, step := range sc.Batches {
		for _, raw := range step.SealFirst {
			require.True(t, mem.SealKey(scenarioKey(t, raw)), "batch %d: seal %v", i, raw)
		}

		res, err := c.SubmitBatch(ctx, BatchOptions{DryRun: step.DryRun})
		require.NoError(t, err, "batch %d", i)

		assert.Equal(t, scenarioCanons(t, step.Submitted), submittedCanons(res),
			"batch %d: submitted identities", i)

		if step.DryRun {
			selected := []string{}
			for _, o := range res.Outcomes {
				selected = append(selected, o.Canon)
			}
			assert.Equal(t, scenarioCanons(t, step.Selected), selected,
				"batch %d: dry-run selection", i)
		}

		failed := []string{}
		for _, o := range res.Outcomes {
			if o.Err != nil {
				failed = append(failed, o.Canon)
			}
		}
		assert.Equal(t, scenarioCanons(t, step.Failed), failed,
			"batch %d: failed identities", i)

		if step.Free != nil {
			assert.Equal(t, *step.Free, res.Free, "batch %d: free slots", i)
		}
		if step.Pending != nil {
			assert.Equal(t, *step.Pending, res.Pending, "batch %d: pending", i)
		}
		if step.ActiveAfter != nil {
			active, err := mem.ActiveCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, *step.ActiveAfter, active, "batch %d: active after batch", i)
		}
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "drain_backlog", path: "testdata/scenarios/drain_backlog.yaml"},
		{name: "resubmission_guard", path: "testdata/scenarios/resubmission_guard.yaml"},
		{name: "dry_run_preview", path: "testdata/scenarios/dry_run_preview.yaml"},
		{name: "failure_retry", path: "testdata/scenarios/failure_retry.yaml"},
		{name: "capacity_clamp", path: "testdata/scenarios/capacity_clamp.yaml"},
		{name: "mixed_field_types", path: "testdata/scenarios/mixed_field_types.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := loadScenario(t, tt.path)
			assert.Equal(t, tt.name, sc.Name, "scenario name mismatch")
			runScenario(t, sc)
		})
	}
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bad.yaml"
	require.NoError(t, os.WriteFile(path, []byte(`
name: bad
description: has a typoed field
group: g
max_active: 1
schema: [a]
batchez:
  - submitted: []
`), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var sc scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err = decoder.Decode(&sc)
	require.Error(t, err, "unknown field must be rejected")
	assert.Contains(t, err.Error(), "batchez")
}

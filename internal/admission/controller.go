package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sluice/internal/ident"
)

// Config fixes a controller instance's group, concurrency ceiling, and
// identity schema. All three are immutable for the instance's lifetime.
type Config struct {
	// Group is the ledger scope. The controller only sees and writes
	// submissions under this label.
	Group string

	// MaxActive is the concurrency ceiling: the controller never
	// submits while it would push the active count past this. Must be
	// positive.
	MaxActive int

	// Schema names the identity fields. Every catalog identity must
	// conform to it.
	Schema ident.Schema
}

// Controller is the admission-controlled batch submitter. It reconciles
// a catalog against a submission ledger, computes free capacity, and
// submits at most that many new units per batch.
//
// A Controller performs no background work and holds no caches: every
// accessor is a fresh query against the collaborators, and the only
// state that survives between calls lives in the Store.
//
// Single-writer model: exactly one controller submits against a given
// (store, group). Concurrent sealing by the execution backend is fine,
// it can only lower the active count. A second submitting writer voids
// the capacity bound.
type Controller struct {
	cfg     Config
	catalog Catalog
	store   Store
	factory PayloadFactory
	engine  Engine

	log      *slog.Logger
	throttle time.Duration
	now      func() time.Time
}

// Option configures optional Controller behavior.
type Option func(*Controller)

// WithLogger routes controller logging to the given logger instead of
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithThrottle inserts a fixed delay between consecutive submissions
// within a batch, rate-limiting calls into the execution engine. Zero,
// the default, disables the delay.
func WithThrottle(d time.Duration) Option {
	return func(c *Controller) {
		c.throttle = d
	}
}

// WithClock overrides the controller's time source for BatchResult
// timestamps. Tests use this to pin Started and Elapsed.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New constructs a Controller. The configuration and all four
// collaborators are validated up front; violations return a
// ConfigError.
func New(cfg Config, catalog Catalog, store Store, factory PayloadFactory, engine Engine, opts ...Option) (*Controller, error) {
	if cfg.Group == "" {
		return nil, &ConfigError{Field: "group", Reason: "must not be empty"}
	}
	if cfg.MaxActive <= 0 {
		return nil, &ConfigError{Field: "maxActive", Reason: fmt.Sprintf("must be positive, got %d", cfg.MaxActive)}
	}
	if err := cfg.Schema.Validate(); err != nil {
		return nil, &ConfigError{Field: "schema", Reason: err.Error()}
	}
	if catalog == nil {
		return nil, &ConfigError{Field: "catalog", Reason: "must not be nil"}
	}
	if store == nil {
		return nil, &ConfigError{Field: "store", Reason: "must not be nil"}
	}
	if factory == nil {
		return nil, &ConfigError{Field: "factory", Reason: "must not be nil"}
	}
	if engine == nil {
		return nil, &ConfigError{Field: "engine", Reason: "must not be nil"}
	}

	c := &Controller{
		cfg:     cfg,
		catalog: catalog,
		store:   store,
		factory: factory,
		engine:  engine,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Group returns the group label the controller is bound to.
func (c *Controller) Group() string {
	return c.cfg.Group
}

// MaxActive returns the configured concurrency ceiling.
func (c *Controller) MaxActive() int {
	return c.cfg.MaxActive
}

// Schema returns the identity schema the controller validates against.
func (c *Controller) Schema() ident.Schema {
	return c.cfg.Schema
}

// PendingCount returns how many catalog identities are not yet in the
// ledger.
func (c *Controller) PendingCount(ctx context.Context) (int, error) {
	rec, err := c.reconcile(ctx)
	if err != nil {
		return 0, err
	}
	return len(rec.pending), nil
}

// SubmittedCount returns how many identities the ledger carries,
// active and sealed alike.
func (c *Controller) SubmittedCount(ctx context.Context) (int, error) {
	known, err := c.store.Known(ctx)
	if err != nil {
		return 0, fmt.Errorf("query ledger: %w", err)
	}
	return len(known), nil
}

// ActiveCount returns the number of submissions not yet in a terminal
// state.
func (c *Controller) ActiveCount(ctx context.Context) (int, error) {
	active, err := c.store.ActiveCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return active, nil
}

// FreeSlots returns how many units the next batch could submit:
// max(0, MaxActive - ActiveCount). A point-in-time snapshot, not a
// reservation.
func (c *Controller) FreeSlots(ctx context.Context) (int, error) {
	active, err := c.ActiveCount(ctx)
	if err != nil {
		return 0, err
	}
	return max(0, c.cfg.MaxActive-active), nil
}

// Status is one reconciliation snapshot: the numbers an operator
// watches to judge progress and headroom.
type Status struct {
	Group     string `json:"group"`
	Targets   int    `json:"targets"`
	Submitted int    `json:"submitted"`
	Pending   int    `json:"pending"`
	Sealed    int    `json:"sealed"`
	MaxActive int    `json:"max_active"`
	Active    int    `json:"active"`
	Free      int    `json:"free"`
}

// Status reports the current snapshot from one pass over the catalog
// and ledger.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	rec, err := c.reconcile(ctx)
	if err != nil {
		return Status{}, err
	}
	active, err := c.store.ActiveCount(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("count active: %w", err)
	}
	return Status{
		Group:     c.cfg.Group,
		Targets:   rec.targets,
		Submitted: rec.known,
		Pending:   len(rec.pending),
		Sealed:    rec.known - active,
		MaxActive: c.cfg.MaxActive,
		Active:    active,
		Free:      max(0, c.cfg.MaxActive-active),
	}, nil
}

// pendingUnit pairs a pending key with its canonical form so the
// submit loop never recomputes canons.
type pendingUnit struct {
	key   ident.Key
	canon string
}

// reconcileState is the snapshot a batch acts on.
type reconcileState struct {
	targets int
	known   int
	pending []pendingUnit
}

// reconcile enumerates the catalog, verifies its integrity, and
// subtracts the ledger's known identities. The set difference runs on
// canonical forms, never on raw field slices.
func (c *Controller) reconcile(ctx context.Context) (*reconcileState, error) {
	targets, err := c.catalog.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(targets))
	units := make([]pendingUnit, 0, len(targets))
	for _, key := range targets {
		if err := c.cfg.Schema.Conform(key); err != nil {
			return nil, &IntegrityError{Group: c.cfg.Group, Reason: err.Error()}
		}
		canon, err := key.Canon()
		if err != nil {
			return nil, &IntegrityError{Group: c.cfg.Group, Reason: fmt.Sprintf("canonicalize identity: %v", err)}
		}
		if _, dup := seen[canon]; dup {
			return nil, &IntegrityError{Group: c.cfg.Group, Reason: "catalog enumerated a duplicate identity", Canon: canon}
		}
		seen[canon] = struct{}{}
		units = append(units, pendingUnit{key: key, canon: canon})
	}

	known, err := c.store.Known(ctx)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	pending := make([]pendingUnit, 0, len(units))
	for _, u := range units {
		if _, ok := known[u.canon]; !ok {
			pending = append(pending, u)
		}
	}

	return &reconcileState{
		targets: len(targets),
		known:   len(known),
		pending: pending,
	}, nil
}

// BatchOptions configures one SubmitBatch invocation.
type BatchOptions struct {
	// DryRun selects the batch without building payloads, starting
	// units, or writing the ledger.
	DryRun bool

	// Order decides which pending identities win scarce capacity. The
	// zero value is natural ascending order.
	Order Ordering

	// Verbose raises per-unit progress events from Debug to Info.
	// Failures log at Error regardless.
	Verbose bool
}

// SubmitBatch runs one reconcile-select-submit cycle and returns what
// happened. Integrity and collaborator failures during reconciliation
// abort before any side effect.
//
// Capacity is snapshotted once at the start of the batch rather than
// re-queried per item; under the single-writer model sealing that
// happens mid-batch only frees slots this batch does not use, so the
// ceiling holds.
//
// Payload and engine-start failures are isolated per unit: the Outcome
// records the error and the loop continues. A ledger write failure
// after a successful start aborts the batch, since a unit is then
// running untracked and further submissions would trust a ledger that
// drops writes.
//
// A cancelled ctx stops the loop between units; the partial result is
// returned alongside the context's error.
func (c *Controller) SubmitBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	started := c.now()

	rec, err := c.reconcile(ctx)
	if err != nil {
		return nil, err
	}

	active, err := c.store.ActiveCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active: %w", err)
	}
	free := max(0, c.cfg.MaxActive-active)

	opts.Order.sort(rec.pending)
	batch := rec.pending
	if len(batch) > free {
		batch = batch[:free]
	}

	result := &BatchResult{
		Group:   c.cfg.Group,
		DryRun:  opts.DryRun,
		Targets: rec.targets,
		Known:   rec.known,
		Pending: len(rec.pending),
		Active:  active,
		Free:    free,
		Started: started,
	}

	level := slog.LevelDebug
	if opts.Verbose {
		level = slog.LevelInfo
	}

	if len(batch) == 0 {
		c.log.Log(ctx, level, "nothing to submit",
			"group", c.cfg.Group,
			"pending", len(rec.pending),
			"active", active,
			"free", free)
		result.Elapsed = c.now().Sub(started)
		return result, nil
	}

	if opts.DryRun {
		c.log.Log(ctx, level, "dry run: selected batch",
			"group", c.cfg.Group,
			"selected", len(batch),
			"pending", len(rec.pending),
			"free", free)
		for _, u := range batch {
			result.Outcomes = append(result.Outcomes, Outcome{Key: u.key, Canon: u.canon, Stage: StageSelected})
		}
		result.Elapsed = c.now().Sub(started)
		return result, nil
	}

	c.log.Log(ctx, level, "submitting batch",
		"group", c.cfg.Group,
		"selected", len(batch),
		"pending", len(rec.pending),
		"active", active,
		"free", free)

	for i, u := range batch {
		if i > 0 {
			if err := c.pause(ctx); err != nil {
				result.Elapsed = c.now().Sub(started)
				return result, err
			}
		}

		outcome := c.submitOne(ctx, u, level)
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Stage == StageRecord {
			result.Elapsed = c.now().Sub(started)
			return result, fmt.Errorf("record submission %s: %w", u.key, outcome.Err)
		}
	}

	result.Elapsed = c.now().Sub(started)
	c.log.Log(ctx, level, "batch finished",
		"group", c.cfg.Group,
		"submitted", result.Submitted(),
		"failed", result.Failed(),
		"elapsed", result.Elapsed)
	return result, nil
}

// submitOne drives one identity through payload construction, engine
// start, and ledger record.
func (c *Controller) submitOne(ctx context.Context, u pendingUnit, level slog.Level) Outcome {
	outcome := Outcome{Key: u.key, Canon: u.canon}

	payload, err := c.factory.Payload(ctx, u.key)
	if err != nil {
		outcome.Stage = StagePayload
		outcome.Err = fmt.Errorf("build payload for %s: %w", u.key, err)
		c.log.Error("payload construction failed",
			"group", c.cfg.Group,
			"identity", u.key.String(),
			"error", err)
		return outcome
	}

	handle, err := c.engine.Start(ctx, payload)
	if err != nil {
		outcome.Stage = StageSubmit
		outcome.Err = fmt.Errorf("start %s: %w", u.key, err)
		c.log.Error("engine start failed",
			"group", c.cfg.Group,
			"identity", u.key.String(),
			"error", err)
		return outcome
	}

	if err := c.store.Record(ctx, u.key, handle); err != nil {
		outcome.Stage = StageRecord
		outcome.Handle = handle
		outcome.Err = err
		c.log.Error("ledger write failed after start",
			"group", c.cfg.Group,
			"identity", u.key.String(),
			"handle", handle,
			"error", err)
		return outcome
	}

	outcome.Stage = StageSubmitted
	outcome.Handle = handle
	c.log.Log(ctx, level, "submitted unit",
		"group", c.cfg.Group,
		"identity", u.key.String(),
		"handle", handle)
	return outcome
}

// pause applies the configured throttle between units, giving up early
// on cancellation. With no throttle it still observes ctx so a
// cancelled batch stops at the next unit boundary.
func (c *Controller) pause(ctx context.Context) error {
	if c.throttle <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.throttle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

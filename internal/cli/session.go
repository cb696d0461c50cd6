package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/sluice/internal/admission"
	"github.com/roach88/sluice/internal/catalog"
	"github.com/roach88/sluice/internal/engine"
	"github.com/roach88/sluice/internal/manifest"
	"github.com/roach88/sluice/internal/store"
)

// session wires one plan, one ledger, and one local engine into a
// controller. Commands that run batches share this setup.
type session struct {
	plan  *manifest.Plan
	store *store.Store
	local *engine.Local
	ctl   *admission.Controller
}

// buildSession loads the plan, opens the ledger, and assembles the
// controller. When sealOnExit is set, every unit exit seals its ledger
// row so capacity frees up without a manual seal.
//
// The catalog is the plan's inline units when it has any, otherwise
// the work units seeded for the group.
func buildSession(planPath, dbPath string, throttle time.Duration, sealOnExit bool) (*session, error) {
	plan, err := manifest.Load(planPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load plan", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var cat admission.Catalog
	if len(plan.Units) > 0 {
		cat = plan.Catalog()
	} else {
		group, err := catalog.NewGroup(st, plan.Group, plan.Schema)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to build catalog", err)
		}
		cat = group
	}

	engineOpts := []engine.Option{engine.WithLogger(slog.Default())}
	if sealOnExit {
		engineOpts = append(engineOpts, engine.WithOnExit(sealOnExitFunc(st, plan.Group)))
	}
	local := engine.NewLocal(engineOpts...)

	ctl, err := admission.New(
		plan.Config(),
		cat,
		st.Bind(plan.Group),
		plan.Factory(),
		local,
		admission.WithLogger(slog.Default()),
		admission.WithThrottle(throttle),
	)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	return &session{plan: plan, store: st, local: local, ctl: ctl}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// sealOnExitFunc seals the exited unit's ledger row. Sealing uses a
// fresh context: the unit already finished, so the bookkeeping should
// land even when the command is shutting down.
func sealOnExitFunc(st *store.Store, group string) func(engine.ExitStatus) {
	return func(status engine.ExitStatus) {
		sealed, err := st.Seal(context.Background(), group, status.Handle)
		if err != nil {
			slog.Error("seal after exit failed", "handle", status.Handle, "error", err)
			return
		}
		if sealed {
			slog.Info("unit sealed", "handle", status.Handle, "exit_code", status.ExitCode)
		}
	}
}

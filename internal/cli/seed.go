package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/manifest"
	"github.com/roach88/sluice/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Plan     string
	Database string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Persist the plan's units as the group's catalog",
		Long: `Write the plan's inline units into the database.

Seeded units become the group's catalog, so later plans can omit the
units block and enumerate straight from the database. Seeding is
idempotent: identities already present are skipped.

Example:
  sluice seed --plan ./plan.cue --db ./sluice.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to plan CUE file or directory (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (required)")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	plan, err := manifest.Load(opts.Plan)
	if err != nil {
		_ = formatter.Error(ErrCodePlan, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load plan", err)
	}
	if len(plan.Units) == 0 {
		message := "plan has no units to seed"
		_ = formatter.Error(ErrCodePlan, message, nil)
		return NewExitError(ExitCommandError, message)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	added, err := st.AddUnits(cmd.Context(), plan.Group, plan.Units)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to seed units", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"group":   plan.Group,
			"units":   len(plan.Units),
			"added":   added,
			"skipped": len(plan.Units) - added,
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ seeded %d unit(s) for %s (%d already present)\n",
		added, plan.Group, len(plan.Units)-added)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/admission"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Plan     string
	Database string
	Every    time.Duration
	Throttle time.Duration
	NoSort   bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Submit batches on an interval until the group drains",
		Long: `Run admission cycles on an interval.

Every cycle submits pending units up to the free capacity. Units seal
their ledger rows as they exit, so capacity frees up between cycles.
Watch stops when the catalog is drained: nothing pending, nothing
active. Ctrl-C stops watching; already started units keep running
detached.

Example:
  sluice watch --plan ./plan.cue --db ./sluice.db
  sluice watch --plan ./plan.cue --db ./sluice.db --every 10s --throttle 1s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to plan CUE file or directory (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (required)")
	cmd.Flags().DurationVar(&opts.Every, "every", 30*time.Second, "interval between admission cycles")
	cmd.Flags().DurationVar(&opts.Throttle, "throttle", 0, "minimum delay between consecutive submissions")
	cmd.Flags().BoolVar(&opts.NoSort, "no-sort", false, "submit in catalog order instead of canonical order")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sess, err := buildSession(opts.Plan, opts.Database, opts.Throttle, true)
	if err != nil {
		reportSetupError(formatter, err)
		return err
	}
	defer sess.Close()

	// Signal handling for graceful shutdown. Started units are
	// detached and survive the watcher.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	batchOpts := admission.BatchOptions{Verbose: opts.Verbose}
	if opts.NoSort {
		batchOpts.Order = admission.CatalogOrder()
	}

	if formatter.Format != "json" {
		fmt.Fprintf(formatter.Writer, "Watching %s every %s. Press Ctrl-C to stop.\n", sess.plan.Group, opts.Every)
	}

	ticker := time.NewTicker(opts.Every)
	defer ticker.Stop()

	for {
		drained, err := watchCycle(ctx, sess, formatter, batchOpts)
		if err != nil {
			return err
		}
		if drained {
			if formatter.Format != "json" {
				fmt.Fprintf(formatter.Writer, "Group %s drained.\n", sess.plan.Group)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			slog.Info("watch stopped", "running", sess.local.Running())
			return nil
		case <-ticker.C:
		}
	}
}

// watchCycle runs one admission cycle and reports whether the group
// has drained: no pending identities, no active submissions, and no
// units still running under this process.
func watchCycle(ctx context.Context, sess *session, formatter *OutputFormatter, batchOpts admission.BatchOptions) (bool, error) {
	res, err := sess.ctl.SubmitBatch(ctx, batchOpts)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown raced the cycle; not a failure.
			return false, nil
		}
		return false, reportBatchError(formatter, res, err)
	}

	if res.Selected() > 0 {
		if formatter.Format == "json" {
			_ = formatter.Success(buildBatchReport(res))
		} else {
			writeBatchText(formatter.Writer, res)
		}
	}
	if res.Failed() > 0 {
		return false, NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", res.Failed()))
	}

	status, err := sess.ctl.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, WrapExitError(ExitFailure, "status failed", err)
	}

	formatter.VerboseLog("cycle: pending %d, active %d, running %d", status.Pending, status.Active, sess.local.Running())
	return status.Pending == 0 && status.Active == 0 && sess.local.Running() == 0, nil
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/admission"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Plan     string
	Database string
	DryRun   bool
	NoSort   bool
	Throttle time.Duration
	Wait     bool
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Run one admission cycle and start pending units",
		Long: `Run one reconcile-select-submit cycle.

Pending identities (catalog targets minus ledger entries) are ordered,
truncated to the free capacity, and started as detached local
processes. Each successful start is recorded in the ledger before the
next unit begins.

Example:
  sluice submit --plan ./plan.cue --db ./sluice.db
  sluice submit --plan ./plans/ --db ./sluice.db --dry-run
  sluice submit --plan ./plan.cue --db ./sluice.db --wait --throttle 2s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to plan CUE file or directory (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (required)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "select the batch without starting or recording anything")
	cmd.Flags().BoolVar(&opts.NoSort, "no-sort", false, "submit in catalog order instead of canonical order")
	cmd.Flags().DurationVar(&opts.Throttle, "throttle", 0, "minimum delay between consecutive submissions")
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "wait for started units to exit and seal them")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sess, err := buildSession(opts.Plan, opts.Database, opts.Throttle, opts.Wait)
	if err != nil {
		reportSetupError(formatter, err)
		return err
	}
	defer sess.Close()

	batchOpts := admission.BatchOptions{
		DryRun:  opts.DryRun,
		Verbose: opts.Verbose,
	}
	if opts.NoSort {
		batchOpts.Order = admission.CatalogOrder()
	}

	res, err := sess.ctl.SubmitBatch(cmd.Context(), batchOpts)
	if err != nil {
		return reportBatchError(formatter, res, err)
	}

	if opts.Wait && !opts.DryRun {
		formatter.VerboseLog("waiting for %d running unit(s)", sess.local.Running())
		sess.local.Wait()
	}

	return reportBatch(formatter, res)
}

// reportSetupError mirrors the exit error onto the formatter so JSON
// consumers see a structured error as well.
func reportSetupError(formatter *OutputFormatter, err error) {
	_ = formatter.Error(setupErrorCode(err), err.Error(), nil)
}

func setupErrorCode(err error) string {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return ErrCodeGeneric
	}
	switch exitErr.Message {
	case "failed to load plan":
		return ErrCodePlan
	case "failed to open database", "failed to build catalog":
		return ErrCodeStore
	case "invalid configuration":
		return ErrCodeConfig
	default:
		return ErrCodeGeneric
	}
}

// reportBatchError handles a batch that did not finish: integrity
// violations, ledger failures, or cancellation. A partial result still
// gets reported.
func reportBatchError(formatter *OutputFormatter, res *admission.BatchResult, err error) error {
	if admission.IsIntegrityError(err) {
		_ = formatter.Error(ErrCodeIntegrity, err.Error(), nil)
		return WrapExitError(ExitFailure, "catalog integrity violated", err)
	}

	var details interface{}
	if res != nil {
		details = buildBatchReport(res)
	}
	_ = formatter.Error(ErrCodeBatch, err.Error(), details)
	return WrapExitError(ExitFailure, "batch aborted", err)
}

// reportBatch renders a finished batch and decides the exit code:
// any failed outcome fails the command.
func reportBatch(formatter *OutputFormatter, res *admission.BatchResult) error {
	report := buildBatchReport(res)

	if formatter.Format == "json" {
		if res.Failed() > 0 {
			if err := formatter.Error(ErrCodeBatch, fmt.Sprintf("%d unit(s) failed", res.Failed()), report); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", res.Failed()))
		}
		if err := formatter.SuccessIndented(report); err != nil {
			return err
		}
		return nil
	}

	writeBatchText(formatter.Writer, res)
	if res.Failed() > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", res.Failed()))
	}
	return nil
}

func writeBatchText(w io.Writer, res *admission.BatchResult) {
	if res.DryRun {
		if res.Selected() == 0 {
			fmt.Fprintf(w, "Nothing to submit (pending %d, free %d)\n", res.Pending, res.Free)
			return
		}
		fmt.Fprintf(w, "Would submit %d unit(s) (pending %d, free %d):\n", res.Selected(), res.Pending, res.Free)
		for _, o := range res.Outcomes {
			fmt.Fprintf(w, "  %s\n", o.Canon)
		}
		return
	}

	if res.Selected() == 0 {
		fmt.Fprintf(w, "Nothing to submit (pending %d, free %d)\n", res.Pending, res.Free)
		return
	}

	if res.Failed() == 0 {
		fmt.Fprintf(w, "✓ submitted %d unit(s) in %s (pending %d, free %d)\n",
			res.Submitted(), res.Elapsed.Round(time.Millisecond), res.Pending, res.Free)
	} else {
		fmt.Fprintf(w, "✗ %d of %d unit(s) failed (submitted %d)\n",
			res.Failed(), res.Selected(), res.Submitted())
	}
	for _, o := range res.Outcomes {
		switch {
		case o.Stage == admission.StageSubmitted:
			fmt.Fprintf(w, "  %s  handle=%s\n", o.Canon, o.Handle)
		case o.Err != nil:
			fmt.Fprintf(w, "  %s  %s: %v\n", o.Canon, o.Stage, o.Err)
		}
	}
}

// batchReport is the JSON shape of one batch.
type batchReport struct {
	Group     string          `json:"group"`
	DryRun    bool            `json:"dry_run"`
	Targets   int             `json:"targets"`
	Known     int             `json:"known"`
	Pending   int             `json:"pending"`
	Active    int             `json:"active"`
	Free      int             `json:"free"`
	Selected  int             `json:"selected"`
	Submitted int             `json:"submitted"`
	Failed    int             `json:"failed"`
	Elapsed   string          `json:"elapsed"`
	Outcomes  []outcomeReport `json:"outcomes,omitempty"`
}

type outcomeReport struct {
	Identity string `json:"identity"`
	Stage    string `json:"stage"`
	Handle   string `json:"handle,omitempty"`
	Error    string `json:"error,omitempty"`
}

func buildBatchReport(res *admission.BatchResult) batchReport {
	report := batchReport{
		Group:     res.Group,
		DryRun:    res.DryRun,
		Targets:   res.Targets,
		Known:     res.Known,
		Pending:   res.Pending,
		Active:    res.Active,
		Free:      res.Free,
		Selected:  res.Selected(),
		Submitted: res.Submitted(),
		Failed:    res.Failed(),
		Elapsed:   res.Elapsed.String(),
	}
	for _, o := range res.Outcomes {
		entry := outcomeReport{
			Identity: o.Canon,
			Stage:    string(o.Stage),
			Handle:   o.Handle,
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		report.Outcomes = append(report.Outcomes, entry)
	}
	return report
}

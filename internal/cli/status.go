package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/admission"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Plan     string
	Database string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the group's admission snapshot",
		Long: `Show one reconciliation snapshot for the plan's group.

Reports how many identities the catalog targets, how many the ledger
already knows, what remains pending, and how much capacity is free.
Read-only: nothing is started or recorded.

Example:
  sluice status --plan ./plan.cue --db ./sluice.db
  sluice status --plan ./plan.cue --db ./sluice.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to plan CUE file or directory (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (required)")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sess, err := buildSession(opts.Plan, opts.Database, 0, false)
	if err != nil {
		reportSetupError(formatter, err)
		return err
	}
	defer sess.Close()

	status, err := sess.ctl.Status(cmd.Context())
	if err != nil {
		if admission.IsIntegrityError(err) {
			_ = formatter.Error(ErrCodeIntegrity, err.Error(), nil)
			return WrapExitError(ExitFailure, "catalog integrity violated", err)
		}
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "status failed", err)
	}

	if formatter.Format == "json" {
		return formatter.SuccessIndented(status)
	}

	fmt.Fprintln(formatter.Writer, renderStatusPanel(status))
	return nil
}

// renderStatusPanel draws the snapshot as a bordered panel.
func renderStatusPanel(status admission.Status) string {
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("SLUICE · %s", status.Group))

	rows := []string{
		statusRow("targets", status.Targets),
		statusRow("submitted", status.Submitted),
		statusRow("pending", status.Pending),
		statusRow("sealed", status.Sealed),
		statusRow("active", status.Active),
		statusRow("free", status.Free),
	}
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(rows, "\n"))

	capacity := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(fmt.Sprintf("ceiling %d", status.MaxActive))

	content := lipgloss.JoinVertical(lipgloss.Left, head, body, capacity)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(content)
}

func statusRow(label string, n int) string {
	return fmt.Sprintf("%-10s %d", label, n)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/ident"
	"github.com/roach88/sluice/internal/store"
)

// SealOptions holds flags for the seal command.
type SealOptions struct {
	*RootOptions
	Database string
	Group    string
	Handle   string
	Key      string
}

// NewSealCommand creates the seal command.
func NewSealCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SealOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Mark a submission terminal",
		Long: `Mark a submission terminal so it stops counting against capacity.

The target is named by handle or by canonical identity. Sealing is the
manual path for units whose exits nobody observed; watch seals
automatically.

Example:
  sluice seal --db ./sluice.db --group pbe-sweep --handle 0190c0de-...
  sluice seal --db ./sluice.db --group pbe-sweep --key '["pbe",3]'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (required)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "group the submission belongs to (required)")
	cmd.Flags().StringVar(&opts.Handle, "handle", "", "handle of the submission to seal")
	cmd.Flags().StringVar(&opts.Key, "key", "", "canonical identity of the submission to seal")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("group")
	cmd.MarkFlagsOneRequired("handle", "key")
	cmd.MarkFlagsMutuallyExclusive("handle", "key")

	return cmd
}

func runSeal(opts *SealOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var sealed bool
	var target string
	if opts.Handle != "" {
		target = opts.Handle
		sealed, err = st.Seal(cmd.Context(), opts.Group, opts.Handle)
	} else {
		key, parseErr := ident.ParseCanon(opts.Key)
		if parseErr != nil {
			_ = formatter.Error(ErrCodeGeneric, parseErr.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid identity", parseErr)
		}
		target = key.MustCanon()
		sealed, err = st.SealByKey(cmd.Context(), opts.Group, key)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "seal failed", err)
	}

	if !sealed {
		message := fmt.Sprintf("no unsealed submission matches %s", target)
		_ = formatter.Error(ErrCodeSeal, message, nil)
		return NewExitError(ExitFailure, message)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"group":  opts.Group,
			"sealed": target,
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ sealed %s\n", target)
	return nil
}

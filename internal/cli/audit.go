package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Database string
	RunID    string
	TxID     string
	Kind     string
	Status   string
	Limit    int
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recorded outcomes",
		Long: `Print the outcome log: one line per processed event, ordered by run and
sequence number.

Examples:
  profilebus audit --txid a1ce...
  profilebus audit --run-id 0192... --status rejected
  profilebus audit --limit 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides store config)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "only this run")
	cmd.Flags().StringVar(&opts.TxID, "txid", "", "only this transaction")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only board or eject outcomes")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only this status (accepted|rejected|ejected|skipped|error)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum outcomes to show (0 for all)")

	return cmd
}

func (o *AuditOptions) filter() (store.OutcomeFilter, error) {
	f := store.OutcomeFilter{
		RunID:  o.RunID,
		TxID:   o.TxID,
		Kind:   ir.OutcomeKind(o.Kind),
		Status: ir.OutcomeStatus(o.Status),
		Limit:  o.Limit,
	}
	if f.Kind != "" && f.Kind != ir.KindBoard && f.Kind != ir.KindEject {
		return f, NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q", o.Kind))
	}
	statuses := []ir.OutcomeStatus{ir.StatusAccepted, ir.StatusRejected, ir.StatusEjected, ir.StatusSkipped, ir.StatusError}
	if f.Status != "" && !slices.Contains(statuses, f.Status) {
		return f, NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q", o.Status))
	}
	if f.Limit < 0 {
		return f, NewExitError(ExitCommandError, "limit must not be negative")
	}
	return f, nil
}

func runAudit(opts *AuditOptions, cmd *cobra.Command) error {
	filter, err := opts.filter()
	if err != nil {
		return err
	}
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	storeOpts := cfg.StoreOptions()
	if opts.Database != "" {
		storeOpts = store.Options{Driver: store.DriverSQLite, Path: opts.Database}
	}
	backend, err := store.OpenBackend(ctx, storeOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer backend.Close()

	outcomes, err := backend.ReadOutcomes(ctx, filter)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read outcomes", err)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(outcomes)
	}

	w := cmd.OutOrStdout()
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No outcomes recorded.")
		return nil
	}

	s := newStyles(w)
	for _, o := range outcomes {
		line := fmt.Sprintf("%s #%d %-5s %s %s", s.key.Render(o.RunID), o.Seq, o.Kind, o.TxID, s.status(o.Status))
		switch {
		case o.Reason != ir.ReasonNone:
			line += fmt.Sprintf(" %s %s", o.Reason, s.muted.Render(o.Detail))
		case o.Error != "":
			line += " " + s.muted.Render(o.Error)
		case o.Detail != "":
			line += " " + s.muted.Render(o.Detail)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

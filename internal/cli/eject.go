package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/profilebus/internal/engine"
	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
)

// EjectOptions holds flags for the eject command.
type EjectOptions struct {
	*RootOptions
	Database string

	// RunIDGenerator allows overriding the run id generator (for testing).
	RunIDGenerator engine.RunIDGenerator
}

// NewEjectCommand creates the eject command.
func NewEjectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eject <txid>...",
		Short: "Retract profiles by transaction id",
		Long: `Delete the profile records created by the given transactions.

Ejecting an id that was never boarded is a successful no-op. Each
retraction is recorded in the audit log like one delivered by a feed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEject(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides store config)")

	return cmd
}

func runEject(opts *EjectOptions, txids []string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
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

	runIDs := opts.RunIDGenerator
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	eng := engine.New(backend, cfg.ValidatorRules(),
		engine.WithRunIDGenerator(runIDs),
		engine.WithRecorder(engine.LogRecorder{Logger: logger}),
		engine.WithRecorder(engine.AuditRecorder{Log: backend}),
		engine.WithLogger(logger),
	)

	outcomes := make([]ir.Outcome, 0, len(txids))
	failed := 0
	for _, txid := range txids {
		out, err := eng.Eject(ctx, txid)
		if err != nil {
			failed++
		}
		outcomes = append(outcomes, out)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: outcomes, RunID: eng.RunID()}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_STORE", Message: fmt.Sprintf("%d ejection(s) failed", failed)}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		s := newStyles(w)
		for _, o := range outcomes {
			line := fmt.Sprintf("%s %s", s.status(o.Status), o.TxID)
			if o.Error != "" {
				line += " " + s.muted.Render(o.Error)
			}
			fmt.Fprintln(w, line)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d ejection(s) failed", failed))
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/profilebus/internal/engine"
	"github.com/roach88/profilebus/internal/feed"
	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Parallelism int
}

// CheckVerdict is one validated feed record.
type CheckVerdict struct {
	TxID     string        `json:"txid"`
	Accepted bool          `json:"accepted"`
	Reason   ir.ReasonCode `json:"reason,omitempty"`
	Detail   string        `json:"detail,omitempty"`
}

// CheckResult holds every verdict in feed order, malformed records last.
type CheckResult struct {
	Verdicts []CheckVerdict `json:"verdicts"`
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Feed     feed.Stats     `json:"feed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <feed.jsonl|->",
		Short: "Validate a feed without touching any store",
		Long: `Validate every board action in a feed and print its verdict.

Nothing is projected or recorded. Eject lines are ignored. Validation runs
in parallel since verdicts are independent.

Exit codes:
  0 - Every action would be accepted
  1 - One or more actions rejected or malformed
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Parallelism, "parallelism", "p", 0, "validation workers (0 uses GOMAXPROCS)")

	return cmd
}

func runCheck(opts *CheckOptions, source string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	in, closeIn, err := openFeed(source, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open feed", err)
	}
	defer closeIn()

	reader := feed.NewReader(in, cfg.Route())
	actions, others, err := feed.Actions(reader)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read feed", err)
	}

	eng := engine.New(store.NewMemory(), cfg.ValidatorRules(), engine.WithParallelism(opts.Parallelism))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	verdicts, err := eng.Prevalidate(ctx, actions)
	if err != nil {
		return WrapExitError(ExitFailure, "validation interrupted", err)
	}

	result := CheckResult{Verdicts: make([]CheckVerdict, 0, len(actions)+len(others)), Feed: reader.Stats()}
	for i, v := range verdicts {
		result.Verdicts = append(result.Verdicts, CheckVerdict{
			TxID:     actions[i].ID,
			Accepted: v.Accepted,
			Reason:   v.Reason,
			Detail:   v.Detail,
		})
	}
	for _, ev := range others {
		if ev.Type != engine.EventTypeMalformed {
			continue
		}
		result.Verdicts = append(result.Verdicts, CheckVerdict{
			TxID:   ev.TxID,
			Reason: ir.ReasonMalformedInput,
			Detail: ev.Err.Error(),
		})
	}
	for _, v := range result.Verdicts {
		if v.Accepted {
			result.Accepted++
		} else {
			result.Rejected++
		}
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		resp := CLIResponse{Status: "ok", Data: result}
		if result.Rejected > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_REJECTED", Message: fmt.Sprintf("%d action(s) rejected", result.Rejected)}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		writeCheckText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d action(s) rejected", result.Rejected))
	}
	return nil
}

func writeCheckText(w io.Writer, result CheckResult, verbose bool) {
	s := newStyles(w)
	for _, v := range result.Verdicts {
		if v.Accepted {
			if verbose {
				fmt.Fprintf(w, "%s %s\n", s.pass(true), v.TxID)
			}
			continue
		}
		fmt.Fprintf(w, "%s %s %s %s\n", s.pass(false), v.TxID, s.rejected.Render(string(v.Reason)), s.muted.Render(v.Detail))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Check Summary: %d accepted, %d rejected, %d total\n",
		result.Accepted, result.Rejected, len(result.Verdicts))
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/profilebus/internal/config"
	"github.com/roach88/profilebus/internal/engine"
	"github.com/roach88/profilebus/internal/feed"
	"github.com/roach88/profilebus/internal/metrics"
	"github.com/roach88/profilebus/internal/store"
	"github.com/roach88/profilebus/internal/telemetry"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database    string
	MetricsAddr string
	Policy      string
	StartHeight int64

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// IngestResult is the command's output payload.
type IngestResult struct {
	RunID   string         `json:"run_id"`
	Summary engine.Summary `json:"summary"`
	Feed    feed.Stats     `json:"feed"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts, StartHeight: -1}

	cmd := &cobra.Command{
		Use:   "ingest <feed.jsonl|->",
		Short: "Project a feed into the state store",
		Long: `Read a JSON-lines feed of board and eject events, validate every board
action and project accepted profiles into the configured state store.

Every event produces exactly one outcome, which is logged, counted and
appended to the store's audit log. Rejections never stop the run.

Exit codes:
  0 - Feed processed
  1 - Store errors occurred, or rejections under --policy surface
  2 - Command error (bad config, unreadable feed, store unavailable)

Examples:
  profilebus ingest feed.jsonl
  profilebus ingest --db ./profiles.db --metrics-addr :9090 feed.jsonl
  crawler | profilebus ingest -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides store config)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "reject policy (drop|surface)")
	cmd.Flags().Int64Var(&opts.StartHeight, "start-height", -1, "skip confirmed actions below this height (0 disables)")

	return cmd
}

// applyFlags overlays command flags onto the loaded configuration.
func (o *IngestOptions) applyFlags(cfg config.Config) (config.Config, error) {
	if o.Database != "" {
		cfg.Store.Driver = store.DriverSQLite
		cfg.Store.Path = o.Database
	}
	if o.MetricsAddr != "" {
		cfg.Metrics.Addr = o.MetricsAddr
	}
	if o.Policy != "" {
		cfg.Policy = o.Policy
	}
	if o.StartHeight >= 0 {
		cfg.Protocol.StartHeight = o.StartHeight
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid flags", err)
	}
	return cfg, nil
}

func runIngest(opts *IngestOptions, source string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	if cfg, err = opts.applyFlags(cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	in, closeIn, err := openFeed(source, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open feed", err)
	}
	defer closeIn()

	logger.Info("opening store", "driver", cfg.Store.Driver)
	backend, err := store.OpenBackend(ctx, cfg.StoreOptions())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	m, reg := metrics.NewDefault()
	backend = m.InstrumentStore(backend)

	if cfg.Metrics.Addr != "" {
		shutdownMetrics, err := serveMetrics(cfg.Metrics.Addr, metrics.Handler(reg), logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer shutdownMetrics()
	}

	runIDs := opts.RunIDGenerator
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	eng := engine.New(backend, cfg.ValidatorRules(),
		engine.WithPolicy(cfg.RejectPolicy()),
		engine.WithStartHeight(cfg.Protocol.StartHeight),
		engine.WithRunIDGenerator(runIDs),
		engine.WithRecorder(engine.LogRecorder{Logger: logger}),
		engine.WithRecorder(engine.AuditRecorder{Log: backend}),
		engine.WithRecorder(m),
		engine.WithLogger(logger),
	)

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(ctx) }()

	reader := feed.NewReader(in, cfg.Route())
	_, pumpErr := feed.Pump(ctx, reader, func(ev engine.Event) bool {
		if ev.Type == engine.EventTypeBoard {
			m.ObserveHeight(ev.Action.BlockHeight)
		}
		return eng.Enqueue(ev)
	})
	eng.Stop()
	err = <-runErr

	stats := reader.Stats()
	m.AddFeedLines("delivered", stats.Delivered)
	m.AddFeedLines("malformed", stats.Malformed)
	m.AddFeedLines("filtered", stats.Filtered)

	if pumpErr != nil && !errors.Is(pumpErr, context.Canceled) {
		return WrapExitError(ExitCommandError, "failed to read feed", pumpErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	result := IngestResult{RunID: eng.RunID(), Summary: eng.Summary(), Feed: stats}
	logger.Info("ingest finished",
		"run_id", result.RunID,
		"accepted", result.Summary.Accepted,
		"rejected", result.Summary.Rejected,
		"ejected", result.Summary.Ejected,
		"skipped", result.Summary.Skipped,
		"errors", result.Summary.Errors,
	)

	return outputIngest(opts, cfg, cmd, result)
}

func outputIngest(opts *IngestOptions, cfg config.Config, cmd *cobra.Command, result IngestResult) error {
	var failure *ExitError
	switch {
	case result.Summary.Errors > 0:
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d event(s) failed to apply", result.Summary.Errors))
	case cfg.RejectPolicy() == engine.PolicySurface && result.Summary.Rejected > 0:
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d action(s) rejected", result.Summary.Rejected))
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if failure != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_INGEST", Message: failure.Message}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		writeIngestText(cmd.OutOrStdout(), result)
	}

	if failure != nil {
		return failure
	}
	return nil
}

func writeIngestText(w io.Writer, result IngestResult) {
	s := newStyles(w)
	fmt.Fprintln(w, s.header.Render("Ingest run "+result.RunID))
	fmt.Fprintf(w, "  %s %d lines, %d delivered, %d malformed, %d filtered\n",
		s.key.Render("feed:"), result.Feed.Lines, result.Feed.Delivered, result.Feed.Malformed, result.Feed.Filtered)
	fmt.Fprintf(w, "  %s %d %s, %d %s, %d %s, %d %s, %d %s\n",
		s.key.Render("outcomes:"),
		result.Summary.Accepted, s.accepted.Render("accepted"),
		result.Summary.Rejected, s.rejected.Render("rejected"),
		result.Summary.Ejected, s.ejected.Render("ejected"),
		result.Summary.Skipped, s.skipped.Render("skipped"),
		result.Summary.Errors, s.failed.Render("errors"),
	)
}

// openFeed opens path, or returns stdin for "-".
func openFeed(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// serveMetrics starts a /metrics endpoint on addr and returns a shutdown func.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

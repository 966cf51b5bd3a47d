package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
	"github.com/roach88/profilebus/internal/validator"
)

const tracerName = "github.com/roach88/profilebus/internal/engine"

// Engine is the single-writer profile pipeline.
//
// Thread-safety model:
//   - Enqueue(), Stop(), Summary(), Prevalidate(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Board(), Eject(): safe to call directly when Run is not in use
type Engine struct {
	validator   *validator.Validator
	projector   *Projector
	retractor   *Retractor
	policy      RejectPolicy
	startHeight int64
	parallelism int

	clock     Sequencer
	runID     string
	recorders []Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
	queue     *eventQueue

	mu      sync.Mutex
	summary Summary
}

// Summary counts outcomes by status.
type Summary struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Ejected  int `json:"ejected"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Total returns the number of outcomes counted.
func (s Summary) Total() int {
	return s.Accepted + s.Rejected + s.Ejected + s.Skipped + s.Errors
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithPolicy sets the reject policy. Default: PolicyDrop.
func WithPolicy(p RejectPolicy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

// WithStartHeight skips board events mined below height.
// Events without a block height (mempool) are never skipped.
func WithStartHeight(height int64) EngineOption {
	return func(e *Engine) { e.startHeight = height }
}

// WithRecorder adds an outcome sink. May be given more than once.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorders = append(e.recorders, r) }
}

// WithClock replaces the logical clock stamping outcome seq.
func WithClock(c Sequencer) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithRunIDGenerator sets the generator used once, at construction, for
// the run id. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) { e.runID = g.Generate() }
}

// WithLogger sets the logger used for processing failures and sink errors.
// Default: discard.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer for per-event spans.
// Default: the global otel tracer provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithParallelism bounds Prevalidate's goroutines. Default: GOMAXPROCS.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// New creates an Engine projecting into s under rules.
func New(s store.StateStore, rules validator.Rules, opts ...EngineOption) *Engine {
	e := &Engine{
		validator:   validator.New(rules),
		projector:   NewProjector(s),
		retractor:   NewRetractor(s),
		policy:      PolicyDrop,
		parallelism: runtime.GOMAXPROCS(0),
		clock:       NewClock(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		queue:       newEventQueue(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.runID == "" {
		e.runID = UUIDv7Generator{}.Generate()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// RunID returns the id stamped on every outcome of this engine.
func (e *Engine) RunID() string {
	return e.runID
}

// Summary returns outcome counts so far.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// Board validates action and, if accepted, projects it.
//
// The returned Outcome is always populated. The error is non-nil when the
// store failed, or when the action was rejected under PolicySurface.
func (e *Engine) Board(ctx context.Context, action ir.TransactionAction) (ir.Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "profilebus.board",
		trace.WithAttributes(
			attribute.String("profilebus.txid", action.ID),
			attribute.Int64("profilebus.block_height", action.BlockHeight),
		))
	defer span.End()

	out := ir.Outcome{Kind: ir.KindBoard, TxID: action.ID}
	var err error

	if e.belowStart(action) {
		out.Status = ir.StatusSkipped
		out.Detail = fmt.Sprintf("block %d below start height %d", action.BlockHeight, e.startHeight)
	} else if verdict := e.validator.Validate(action); !verdict.Accepted {
		out.Status = ir.StatusRejected
		out.Reason = verdict.Reason
		out.Detail = verdict.Detail
		err = e.policy.apply(verdict.Err(action.ID))
	} else if perr := e.projector.Board(ctx, action, verdict); perr != nil {
		out.Status = ir.StatusError
		out.Error = perr.Error()
		err = perr
	} else {
		out.Status = ir.StatusAccepted
	}

	out = e.finish(ctx, out)
	endSpan(span, out, err)
	return out, err
}

// Eject retracts txid. Always idempotent; the error is non-nil only when
// the store failed.
func (e *Engine) Eject(ctx context.Context, txid string) (ir.Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "profilebus.eject",
		trace.WithAttributes(attribute.String("profilebus.txid", txid)))
	defer span.End()

	out := ir.Outcome{Kind: ir.KindEject, TxID: txid, Status: ir.StatusEjected}
	err := e.retractor.Eject(ctx, txid)
	if err != nil {
		out.Status = ir.StatusError
		out.Error = err.Error()
	}

	out = e.finish(ctx, out)
	endSpan(span, out, err)
	return out, err
}

// Malformed records a board record that could not be decoded into an
// action. It is treated as a MALFORMED_INPUT rejection under the configured
// policy.
func (e *Engine) Malformed(ctx context.Context, txid string, cause error) (ir.Outcome, error) {
	return e.malformed(ctx, ir.KindBoard, txid, cause)
}

// MalformedEject records an eject record that could not be decoded. The
// outcome keeps the eject kind so the audit log shows what was attempted.
func (e *Engine) MalformedEject(ctx context.Context, txid string, cause error) (ir.Outcome, error) {
	return e.malformed(ctx, ir.KindEject, txid, cause)
}

func (e *Engine) malformed(ctx context.Context, kind ir.OutcomeKind, txid string, cause error) (ir.Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "profilebus.malformed",
		trace.WithAttributes(
			attribute.String("profilebus.txid", txid),
			attribute.String("profilebus.kind", string(kind)),
		))
	defer span.End()

	verdict := validator.Reject(ir.ReasonMalformedInput, "%v", cause)
	out := ir.Outcome{
		Kind:   kind,
		TxID:   txid,
		Status: ir.StatusRejected,
		Reason: verdict.Reason,
		Detail: verdict.Detail,
	}
	err := e.policy.apply(verdict.Err(txid))

	out = e.finish(ctx, out)
	endSpan(span, out, err)
	return out, err
}

func (e *Engine) belowStart(action ir.TransactionAction) bool {
	return e.startHeight > 0 && action.BlockHeight > 0 && action.BlockHeight < e.startHeight
}

// finish stamps the outcome and hands it to every recorder.
// A recorder failure is logged and never changes the outcome.
func (e *Engine) finish(ctx context.Context, out ir.Outcome) ir.Outcome {
	out.Seq = e.clock.Next()
	out.RunID = e.runID

	e.mu.Lock()
	switch out.Status {
	case ir.StatusAccepted:
		e.summary.Accepted++
	case ir.StatusRejected:
		e.summary.Rejected++
	case ir.StatusEjected:
		e.summary.Ejected++
	case ir.StatusSkipped:
		e.summary.Skipped++
	case ir.StatusError:
		e.summary.Errors++
	}
	e.mu.Unlock()

	for _, r := range e.recorders {
		if err := r.Record(ctx, out); err != nil {
			e.logger.Error("outcome recorder failed",
				"error", err,
				"seq", out.Seq,
				"txid", out.TxID,
				"status", out.Status,
			)
		}
	}
	return out
}

func endSpan(span trace.Span, out ir.Outcome, err error) {
	span.SetAttributes(
		attribute.Int64("profilebus.seq", out.Seq),
		attribute.String("profilebus.status", string(out.Status)),
	)
	if out.Reason != "" {
		span.SetAttributes(attribute.String("profilebus.reason", string(out.Reason)))
	}
	if out.Status == ir.StatusError && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// Enqueue submits an event for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Run starts the single-writer event loop.
// Returns nil once Stop() was called and every queued event is processed,
// or ctx.Err() when the context is cancelled.
//
// Must be called from exactly one goroutine.
//
// ERROR HANDLING: On event processing failure, the error is logged with full
// event context and processing continues. Redelivery, not retry, is the
// recovery path.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "run_id", e.runID)

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(ctx, event); err != nil {
				e.logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "run_id", e.runID)
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so this fires
			// repeatedly once stopped until the queue is drained.
			if e.queue.Drained() {
				e.logger.Info("engine stopping: queue drained", "run_id", e.runID)
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns after draining what was already queued.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent routes an event to the appropriate handler.
// Called only from the Run goroutine.
func (e *Engine) processEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypeBoard:
		if event.Action == nil {
			return fmt.Errorf("board event missing action")
		}
		_, err := e.Board(ctx, *event.Action)
		return err

	case EventTypeEject:
		_, err := e.Eject(ctx, event.TxID)
		return err

	case EventTypeMalformed:
		kind := event.Kind
		if kind == "" {
			kind = ir.KindBoard
		}
		_, err := e.malformed(ctx, kind, event.TxID, event.Err)
		return err

	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

// logEventError logs a processing failure with enough context to find the
// event in the feed again. Surfaced rejections log at Warn.
func (e *Engine) logEventError(event Event, err error) {
	level := slog.LevelError
	if validator.IsRejection(err) {
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, "event processing failed",
		"error", err,
		"event_type", event.Type.String(),
		"txid", event.TxID,
		"run_id", e.runID,
	)
}

package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/profilebus/internal/engine"
	"github.com/roach88/profilebus/internal/feed"
	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
	"github.com/roach88/profilebus/internal/testutil"
	"github.com/roach88/profilebus/internal/validator"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and a fixed run id.
type Harness struct {
	store     store.Backend
	engine    *engine.Engine
	collector *engine.Collector
	logger    *slog.Logger
}

// Option configures a Harness run.
type Option func(*options)

type options struct {
	logger *slog.Logger
	rules  validator.Rules
}

// WithLogger sets the engine logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRules replaces the default validation rules.
func WithRules(r validator.Rules) Option {
	return func(o *options) { o.rules = r }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh store for isolation. Steps are enqueued in
// order and the engine's Run loop processes them, so the result reflects
// what a real ingestion run would produce.
//
// The returned error is reserved for harness failures (store open, bad
// fixtures). Expectation and assertion failures land in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		rules:  validator.DefaultRules(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := engine.ParseRejectPolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, scenario.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", storeName(scenario.Store), err)
	}
	defer st.Close()

	collector := &engine.Collector{}
	eng := engine.New(st, o.rules,
		engine.WithPolicy(policy),
		engine.WithStartHeight(scenario.StartHeight),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithRunIDGenerator(testutil.FixedRunID(scenario.RunID)),
		engine.WithRecorder(collector),
		engine.WithRecorder(engine.AuditRecorder{Log: st}),
		engine.WithLogger(o.logger),
	)

	h := &Harness{
		store:     st,
		engine:    eng,
		collector: collector,
		logger:    o.logger,
	}

	result := NewResult(eng.RunID())
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		RunID: eng.RunID(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func storeName(s string) string {
	if s == "" {
		return StoreMemory
	}
	return s
}

// openStore opens an isolated backend. SQLite runs in memory on a single
// connection, so the database lives exactly as long as the store.
func openStore(ctx context.Context, kind string) (store.Backend, error) {
	if kind == StoreSQLite {
		return store.OpenBackend(ctx, store.Options{Driver: store.DriverSQLite, Path: ":memory:"})
	}
	return store.OpenBackend(ctx, store.Options{Driver: store.DriverMemory})
}

// executeSteps enqueues every step, drains the engine and checks each
// outcome against its expect clause.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		event, err := buildEvent(step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if !h.engine.Enqueue(event) {
			return fmt.Errorf("step %d: engine stopped", i)
		}
	}
	h.engine.Stop()

	if err := h.engine.Run(ctx); err != nil {
		return err
	}

	if len(h.collector.Outcomes) != len(steps) {
		return fmt.Errorf("expected %d outcomes, engine recorded %d", len(steps), len(h.collector.Outcomes))
	}
	result.Outcomes = append(result.Outcomes, h.collector.Outcomes...)

	for i, step := range steps {
		out := h.collector.Outcomes[i]
		if step.Expect != nil {
			if msg := checkExpect(i, step.Expect, out); msg != "" {
				result.AddError(msg)
			}
		}
		h.logger.Info("step completed",
			"step", i,
			"kind", out.Kind,
			"txid", out.TxID,
			"status", out.Status,
			"reason", out.Reason,
		)
	}
	return nil
}

func checkExpect(index int, want *Expect, got ir.Outcome) string {
	if got.Status != want.Status {
		return fmt.Sprintf("step %d (%s): expected status %s, got %s (%s)",
			index, got.TxID, want.Status, got.Status, describe(got))
	}
	if want.Reason != ir.ReasonNone && got.Reason != want.Reason {
		return fmt.Sprintf("step %d (%s): expected reason %s, got %q",
			index, got.TxID, want.Reason, got.Reason)
	}
	return ""
}

func describe(o ir.Outcome) string {
	switch {
	case o.Error != "":
		return o.Error
	case o.Reason != ir.ReasonNone:
		return fmt.Sprintf("%s: %s", o.Reason, o.Detail)
	case o.Detail != "":
		return o.Detail
	default:
		return "no detail"
	}
}

// buildEvent turns a scenario step into the engine event a feed would deliver.
func buildEvent(step Step) (engine.Event, error) {
	if step.Board == nil {
		return engine.EjectEvent(step.Eject), nil
	}

	b := step.Board
	if b.Action != nil {
		raw, err := json.Marshal(b.Action)
		if err != nil {
			return engine.Event{}, fmt.Errorf("encode action: %w", err)
		}
		action, err := feed.DecodeAction(raw)
		if err != nil {
			return engine.MalformedEvent(txidOf(b.Action), err), nil
		}
		return engine.BoardEvent(action), nil
	}

	action := testutil.AliceAction()
	if b.ID != "" {
		action.ID = b.ID
	}
	action.BlockHeight = b.BlockHeight
	for field, value := range b.Output {
		set, ok := outputSetters[field]
		if !ok {
			return engine.Event{}, fmt.Errorf("unknown output field %q", field)
		}
		set(&action.Outputs[0], value)
	}
	if b.Signers != nil {
		action.Inputs = make([]ir.Input, len(b.Signers))
		for i, addr := range b.Signers {
			action.Inputs[i] = ir.Input{SigningAddress: addr}
		}
	}
	return engine.BoardEvent(action), nil
}

func txidOf(doc map[string]any) string {
	if id, ok := doc["id"].(string); ok {
		return id
	}
	return ""
}

// outputSetters maps feed field names onto output 0.
var outputSetters = map[string]func(*ir.Output, string){
	"namespaceSelector":   func(o *ir.Output, v string) { o.NamespaceSelector = v },
	"userID":              func(o *ir.Output, v string) { o.UserID = v },
	"primaryPubKeyHex":    func(o *ir.Output, v string) { o.PrimaryPubKeyHex = v },
	"privilegedPubKeyHex": func(o *ir.Output, v string) { o.PrivilegedPubKeyHex = v },
	"timestampStr":        func(o *ir.Output, v string) { o.TimestampStr = v },
	"name":                func(o *ir.Output, v string) { o.Name = v },
	"photoURL":            func(o *ir.Output, v string) { o.PhotoURL = v },
}

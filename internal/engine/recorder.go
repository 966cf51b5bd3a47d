package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
)

// Recorder consumes outcomes. The engine calls every configured Recorder
// once per event, after seq and run id are stamped.
type Recorder interface {
	Record(ctx context.Context, o ir.Outcome) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, o ir.Outcome) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, o ir.Outcome) error {
	return f(ctx, o)
}

// LogRecorder writes one structured log line per outcome.
type LogRecorder struct {
	Logger *slog.Logger
}

// Record logs o. Accepted and ejected outcomes log at Info, rejections at
// Info with the reason, skips at Debug, store errors at Warn.
func (r LogRecorder) Record(ctx context.Context, o ir.Outcome) error {
	attrs := []any{
		"seq", o.Seq,
		"run_id", o.RunID,
		"kind", o.Kind,
		"txid", o.TxID,
	}
	switch o.Status {
	case ir.StatusAccepted:
		r.Logger.InfoContext(ctx, "profile boarded", attrs...)
	case ir.StatusEjected:
		r.Logger.InfoContext(ctx, "profile ejected", attrs...)
	case ir.StatusRejected:
		r.Logger.InfoContext(ctx, "profile rejected", append(attrs, "reason", o.Reason, "detail", o.Detail)...)
	case ir.StatusSkipped:
		r.Logger.DebugContext(ctx, "profile skipped", append(attrs, "detail", o.Detail)...)
	default:
		r.Logger.WarnContext(ctx, "profile not applied", append(attrs, "status", o.Status, "error", o.Error)...)
	}
	return nil
}

// AuditRecorder appends outcomes to a store audit log.
type AuditRecorder struct {
	Log store.AuditLog
}

// Record writes o to the audit log.
func (r AuditRecorder) Record(ctx context.Context, o ir.Outcome) error {
	return r.Log.WriteOutcome(ctx, o)
}

// Collector keeps outcomes in memory, in recording order.
// Used by the check command and the conformance harness.
type Collector struct {
	Outcomes []ir.Outcome
}

// Record appends o.
func (c *Collector) Record(_ context.Context, o ir.Outcome) error {
	c.Outcomes = append(c.Outcomes, o)
	return nil
}

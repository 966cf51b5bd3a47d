package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/profilebus/internal/ir"
)

// Lookup returns the record stored under (collection, id), or ErrNotFound.
func (s *SQLite) Lookup(ctx context.Context, collection, id string) (ir.ProfileRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM records WHERE collection = ? AND id = ?
	`, collection, id).Scan(&data)
	if isNoRows(err) {
		return ir.ProfileRecord{}, fmt.Errorf("lookup %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return ir.ProfileRecord{}, fmt.Errorf("lookup %s/%s: %w", collection, id, err)
	}
	return unmarshalRecord(data)
}

// Count returns how many records a collection holds.
func (s *SQLite) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE collection = ?
	`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// ReadOutcomes returns audit outcomes matching f.
// Ordered by run_id, then seq, so each run reads back in processing order.
func (s *SQLite) ReadOutcomes(ctx context.Context, f OutcomeFilter) ([]ir.Outcome, error) {
	query, args := outcomeQuery(f, func(int) string { return "?" })

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []ir.Outcome{}
	for rows.Next() {
		var (
			o                    ir.Outcome
			kind, status, reason string
		)
		if err := rows.Scan(&o.RunID, &o.Seq, &kind, &o.TxID, &status, &reason, &o.Detail, &o.Error); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Kind = ir.OutcomeKind(kind)
		o.Status = ir.OutcomeStatus(status)
		o.Reason = ir.ReasonCode(reason)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// outcomeQuery builds the SELECT for f. placeholder renders the n-th bind
// parameter (1-based) in the backend's syntax.
func outcomeQuery(f OutcomeFilter, placeholder func(n int) string) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, column+" = "+placeholder(len(args)))
	}
	add("run_id", f.RunID)
	add("txid", f.TxID)
	add("kind", string(f.Kind))
	add("status", string(f.Status))

	var b strings.Builder
	b.WriteString("SELECT run_id, seq, kind, txid, status, reason, detail, error FROM outcomes")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY run_id ASC, seq ASC")
	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
	}
	return b.String(), args
}

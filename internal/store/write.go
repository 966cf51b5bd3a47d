package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/profilebus/internal/ir"
)

// Create inserts record under (collection, id).
// Uses ON CONFLICT DO NOTHING; when the insert is skipped the stored hash is
// compared so a redelivery is a no-op and a different record is ErrConflict.
func (s *SQLite) Create(ctx context.Context, collection, id string, record ir.ProfileRecord) error {
	data, hash, err := marshalRecord(record)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create %s/%s: begin tx: %w", collection, id, err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO records (collection, id, data, record_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO NOTHING
	`, collection, id, data, hash)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %s/%s: rows affected: %w", collection, id, err)
	}

	if affected == 0 {
		var existing string
		err := tx.QueryRowContext(ctx, `
			SELECT record_hash FROM records WHERE collection = ? AND id = ?
		`, collection, id).Scan(&existing)
		if err != nil {
			return fmt.Errorf("create %s/%s: read existing: %w", collection, id, err)
		}
		if existing != hash {
			return fmt.Errorf("create %s/%s: %w", collection, id, ErrConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create %s/%s: commit: %w", collection, id, err)
	}
	return nil
}

// Delete removes (collection, id). Deleting an absent id is not an error.
func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE collection = ? AND id = ?
	`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// WriteOutcome appends an outcome to the audit log.
// Uses ON CONFLICT(run_id, seq) DO NOTHING so a replayed write is ignored.
func (s *SQLite) WriteOutcome(ctx context.Context, o ir.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, seq, kind, txid, status, reason, detail, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		o.RunID,
		o.Seq,
		string(o.Kind),
		o.TxID,
		string(o.Status),
		string(o.Reason),
		o.Detail,
		o.Error,
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/profilebus/internal/ir"
)

// postgresDDL mirrors schema.sql.
var postgresDDL = []string{
	`CREATE TABLE IF NOT EXISTS records (
		collection  TEXT NOT NULL,
		id          TEXT NOT NULL,
		data        JSONB NOT NULL,
		record_hash TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`,
	`CREATE TABLE IF NOT EXISTS outcomes (
		run_id TEXT   NOT NULL,
		seq    BIGINT NOT NULL,
		kind   TEXT   NOT NULL,
		txid   TEXT   NOT NULL,
		status TEXT   NOT NULL,
		reason TEXT   NOT NULL DEFAULT '',
		detail TEXT   NOT NULL DEFAULT '',
		error  TEXT   NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outcomes_txid ON outcomes(txid)`,
}

// Postgres is the shared-database store. Per-id atomicity comes from the
// primary key plus a transaction around insert-or-compare.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the DDL.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	config.MaxConns = 8
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range postgresDDL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("execute ddl: %w", err)
		}
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// errRowVanished reports a conflicting row that was deleted between the
// insert and the read that compares hashes.
var errRowVanished = errors.New("existing row vanished")

// Create follows the same redelivery and conflict rules as SQLite.Create.
func (p *Postgres) Create(ctx context.Context, collection, id string, record ir.ProfileRecord) error {
	data, hash, err := marshalRecord(record)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	err = retryVanished(func() error {
		return p.insertOrCompare(ctx, collection, id, data, hash)
	})
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return nil
}

// retryVanished runs attempt a second time when the first one lost its
// conflicting row to a concurrent Delete.
func retryVanished(attempt func() error) error {
	err := attempt()
	if errors.Is(err, errRowVanished) {
		err = attempt()
	}
	return err
}

func (p *Postgres) insertOrCompare(ctx context.Context, collection, id, data, hash string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, `
		INSERT INTO records (collection, id, data, record_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO NOTHING
	`, collection, id, data, hash)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		var existing string
		err := tx.QueryRow(ctx, `
			SELECT record_hash FROM records WHERE collection = $1 AND id = $2 FOR SHARE
		`, collection, id).Scan(&existing)
		if errors.Is(err, pgx.ErrNoRows) {
			return errRowVanished
		}
		if err != nil {
			return fmt.Errorf("read existing: %w", err)
		}
		if existing != hash {
			return ErrConflict
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes (collection, id). Deleting an absent id is not an error.
func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Lookup returns the stored record or ErrNotFound.
func (p *Postgres) Lookup(ctx context.Context, collection, id string) (ir.ProfileRecord, error) {
	var data string
	err := p.pool.QueryRow(ctx, `
		SELECT data::text FROM records WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ir.ProfileRecord{}, fmt.Errorf("lookup %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return ir.ProfileRecord{}, fmt.Errorf("lookup %s/%s: %w", collection, id, err)
	}
	return unmarshalRecord(data)
}

// Count returns how many records a collection holds.
func (p *Postgres) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE collection = $1`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// WriteOutcome appends an outcome; a replayed (run_id, seq) is ignored.
func (p *Postgres) WriteOutcome(ctx context.Context, o ir.Outcome) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO outcomes (run_id, seq, kind, txid, status, reason, detail, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, seq) DO NOTHING
	`, o.RunID, o.Seq, string(o.Kind), o.TxID, string(o.Status), string(o.Reason), o.Detail, o.Error)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

// ReadOutcomes returns matching outcomes ordered by run id, then seq.
func (p *Postgres) ReadOutcomes(ctx context.Context, f OutcomeFilter) ([]ir.Outcome, error) {
	query, args := outcomeQuery(f, func(n int) string { return fmt.Sprintf("$%d", n) })

	rows, err := p.pool.Query(ctx, query, args...)
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

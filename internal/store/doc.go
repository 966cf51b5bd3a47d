// Package store holds projected profile state and the outcome audit log.
//
// Every backend implements the same idempotent contract:
//
//   - Create of an id that does not exist inserts the record.
//   - Create of an id that exists with identical data is a no-op.
//   - Create of an id that exists with different data returns ErrConflict
//     and leaves the stored row untouched.
//   - Delete of an absent id is a no-op.
//
// Identity of data is decided by ir.RecordHash, computed over the record's
// RFC 8785 canonical JSON. No tombstones are kept, so a record that was
// deleted can be created again.
//
// # Backends
//
//   - SQLite: WAL mode, one connection, embedded schema with user_version
//     migrations. The default for the CLI.
//   - Postgres: pgx connection pool, the same tables, inserts guarded by
//     ON CONFLICT DO NOTHING inside a transaction.
//   - Memory: mutex-guarded maps for tests and dry runs.
//
// Audit outcomes are ordered by (run_id, seq) and read back in that order.
package store

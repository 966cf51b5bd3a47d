package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/profilebus/internal/ir"
)

// ErrConflict is returned by Create when a different record already
// occupies the id.
var ErrConflict = errors.New("record exists with different data")

// ErrNotFound is returned by Lookup for absent ids.
var ErrNotFound = errors.New("record not found")

// StateStore is the mutable entity store the pipeline projects into.
// Implementations serialize mutations per (collection, id).
type StateStore interface {
	Create(ctx context.Context, collection, id string, record ir.ProfileRecord) error
	Delete(ctx context.Context, collection, id string) error
}

// AuditLog persists per-event outcomes.
type AuditLog interface {
	WriteOutcome(ctx context.Context, o ir.Outcome) error
	ReadOutcomes(ctx context.Context, f OutcomeFilter) ([]ir.Outcome, error)
}

// Backend is a full store implementation as opened by OpenBackend.
type Backend interface {
	StateStore
	AuditLog
	Lookup(ctx context.Context, collection, id string) (ir.ProfileRecord, error)
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

// OutcomeFilter narrows ReadOutcomes. Zero fields match everything.
type OutcomeFilter struct {
	RunID  string
	TxID   string
	Kind   ir.OutcomeKind
	Status ir.OutcomeStatus
	Limit  int
}

// Matches reports whether o passes the filter (Limit is not considered).
func (f OutcomeFilter) Matches(o ir.Outcome) bool {
	if f.RunID != "" && o.RunID != f.RunID {
		return false
	}
	if f.TxID != "" && o.TxID != f.TxID {
		return false
	}
	if f.Kind != "" && o.Kind != f.Kind {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}

// Driver names accepted by OpenBackend.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options select and address a backend.
type Options struct {
	Driver string
	Path   string // SQLite database file
	DSN    string // Postgres connection string
}

// OpenBackend opens the backend named by opts.Driver.
func OpenBackend(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		if opts.Path == "" {
			return nil, errors.New("open sqlite: path is required")
		}
		return Open(opts.Path)
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, errors.New("open postgres: dsn is required")
		}
		return OpenPostgres(ctx, opts.DSN)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

var (
	_ Backend = (*SQLite)(nil)
	_ Backend = (*Postgres)(nil)
	_ Backend = (*Memory)(nil)
)

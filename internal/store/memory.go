package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/profilebus/internal/ir"
)

type memoryEntry struct {
	record ir.ProfileRecord
	hash   string
}

// Memory is an in-process store for tests and dry runs.
// A single mutex serializes every operation.
type Memory struct {
	mu       sync.Mutex
	records  map[string]map[string]memoryEntry
	outcomes []ir.Outcome
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]memoryEntry)}
}

// Create follows the same redelivery and conflict rules as SQLite.Create.
func (m *Memory) Create(ctx context.Context, collection, id string, record ir.ProfileRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	hash, err := ir.RecordHash(record)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.records[collection]
	if coll == nil {
		coll = make(map[string]memoryEntry)
		m.records[collection] = coll
	}
	if existing, ok := coll[id]; ok {
		if existing.hash != hash {
			return fmt.Errorf("create %s/%s: %w", collection, id, ErrConflict)
		}
		return nil
	}
	coll[id] = memoryEntry{record: record, hash: hash}
	return nil
}

// Delete removes (collection, id) if present.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records[collection], id)
	return nil
}

// Lookup returns the stored record or ErrNotFound.
func (m *Memory) Lookup(_ context.Context, collection, id string) (ir.ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[collection][id]
	if !ok {
		return ir.ProfileRecord{}, fmt.Errorf("lookup %s/%s: %w", collection, id, ErrNotFound)
	}
	return e.record, nil
}

// Count returns how many records a collection holds.
func (m *Memory) Count(_ context.Context, collection string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[collection]), nil
}

// WriteOutcome appends o unless (run_id, seq) was already written.
func (m *Memory) WriteOutcome(_ context.Context, o ir.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.outcomes {
		if existing.RunID == o.RunID && existing.Seq == o.Seq {
			return nil
		}
	}
	m.outcomes = append(m.outcomes, o)
	return nil
}

// ReadOutcomes returns matching outcomes ordered by run id, then seq.
func (m *Memory) ReadOutcomes(_ context.Context, f OutcomeFilter) ([]ir.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []ir.Outcome{}
	for _, o := range m.outcomes {
		if f.Matches(o) {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b ir.Outcome) int {
		return cmp.Or(cmp.Compare(a.RunID, b.RunID), cmp.Compare(a.Seq, b.Seq))
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

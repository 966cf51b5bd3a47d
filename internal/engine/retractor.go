package engine

import (
	"context"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
)

// Retractor removes records whose transaction was invalidated.
type Retractor struct {
	store      store.StateStore
	collection string
}

// NewRetractor returns a Retractor deleting from ir.Collection.
func NewRetractor(s store.StateStore) *Retractor {
	return &Retractor{store: s, collection: ir.Collection}
}

// Eject deletes the record for txid. Ejecting an id that was never
// projected, or was already ejected, is a no-op.
func (r *Retractor) Eject(ctx context.Context, txid string) error {
	if err := r.store.Delete(ctx, r.collection, txid); err != nil {
		return newStoreError("delete", txid, err)
	}
	return nil
}

package engine

import (
	"context"
	"errors"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
	"github.com/roach88/profilebus/internal/validator"
)

// Projector turns accepted actions into profile records.
type Projector struct {
	store      store.StateStore
	collection string
}

// NewProjector returns a Projector writing into ir.Collection.
func NewProjector(s store.StateStore) *Projector {
	return &Projector{store: s, collection: ir.Collection}
}

// Board creates the record for action. verdict must be accepted; the
// timestamp is taken from it rather than parsed again.
//
// A redelivered action is a no-op at the store. Errors are returned as
// *PipelineError and never retried here.
func (p *Projector) Board(ctx context.Context, action ir.TransactionAction, verdict validator.Verdict) error {
	if !verdict.Accepted {
		return &PipelineError{
			Code: ErrCodeNotAccepted,
			Op:   "create",
			TxID: action.ID,
			Err:  errors.New("refusing to project a rejected action"),
		}
	}
	record := ir.NewProfileRecord(action, verdict.Normalized.Timestamp)
	if err := p.store.Create(ctx, p.collection, record.ID, record); err != nil {
		return newStoreError("create", action.ID, err)
	}
	return nil
}

package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/validator"
)

// Prevalidate validates independent actions in parallel and returns their
// verdicts in input order. Validation is pure, so parallelism cannot change
// any verdict; it only spreads CPU across up to WithParallelism goroutines.
//
// Nothing is projected or recorded. Returns ctx.Err() if canceled before
// every action was validated.
func (e *Engine) Prevalidate(ctx context.Context, actions []ir.TransactionAction) ([]validator.Verdict, error) {
	verdicts := make([]validator.Verdict, len(actions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i := range actions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			verdicts[i] = e.validator.Validate(actions[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/testutil"
)

// runContract exercises the idempotent create/delete contract and the audit
// log against any backend.
func runContract(t *testing.T, open func(t *testing.T) Backend) {
	t.Run("create then lookup returns literal record", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testutil.AliceRecord()

		require.NoError(t, s.Create(ctx, ir.Collection, rec.ID, rec))

		got, err := s.Lookup(ctx, ir.Collection, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("identical create is a no-op", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testutil.AliceRecord()

		require.NoError(t, s.Create(ctx, ir.Collection, rec.ID, rec))
		require.NoError(t, s.Create(ctx, ir.Collection, rec.ID, rec))

		n, err := s.Count(ctx, ir.Collection)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("different data under same id conflicts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testutil.AliceRecord()
		require.NoError(t, s.Create(ctx, ir.Collection, rec.ID, rec))

		changed := rec
		changed.Name = "Mallory"
		err := s.Create(ctx, ir.Collection, rec.ID, changed)
		require.ErrorIs(t, err, ErrConflict)

		got, err := s.Lookup(ctx, ir.Collection, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Name)
	})

	t.Run("delete removes record", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testutil.AliceRecord()
		require.NoError(t, s.Create(ctx, ir.Collection, rec.ID, rec))

		require.NoError(t, s.Delete(ctx, ir.Collection, rec.ID))

		_, err := s.Lookup(ctx, ir.Collection, rec.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete absent id is a no-op", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Delete(context.Background(), ir.Collection, "never-created"))
		require.NoError(t, s.Delete(context.Background(), ir.Collection, "never-created"))
	})

	t.Run("record can be recreated after delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testutil.AliceRecord()

		require.NoError(t, s.Delete(ctx, ir.Collection, rec.ID))
		require.NoError(t, s.Create(ctx, ir.Collection, rec.ID, rec))
		require.NoError(t, s.Delete(ctx, ir.Collection, rec.ID))
		require.NoError(t, s.Create(ctx, ir.Collection, rec.ID, rec))

		_, err := s.Lookup(ctx, ir.Collection, rec.ID)
		assert.NoError(t, err)
	})

	t.Run("collections are independent", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testutil.AliceRecord()
		require.NoError(t, s.Create(ctx, "other", rec.ID, rec))

		_, err := s.Lookup(ctx, ir.Collection, rec.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		n, err := s.Count(ctx, "other")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("concurrent identical creates", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testutil.AliceRecord()

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Create(ctx, ir.Collection, rec.ID, rec)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		n, err := s.Count(ctx, ir.Collection)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("outcomes read back filtered and ordered", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		outcomes := []ir.Outcome{
			{RunID: "run-b", Seq: 1, Kind: ir.KindBoard, TxID: "t3", Status: ir.StatusAccepted},
			{RunID: "run-a", Seq: 2, Kind: ir.KindBoard, TxID: "t2", Status: ir.StatusRejected, Reason: ir.ReasonBadURLScheme, Detail: `photo URL "ftp://x"`},
			{RunID: "run-a", Seq: 1, Kind: ir.KindBoard, TxID: "t1", Status: ir.StatusAccepted},
			{RunID: "run-a", Seq: 3, Kind: ir.KindEject, TxID: "t1", Status: ir.StatusEjected},
		}
		for _, o := range outcomes {
			require.NoError(t, s.WriteOutcome(ctx, o))
		}
		// Replayed write is ignored.
		require.NoError(t, s.WriteOutcome(ctx, outcomes[0]))

		all, err := s.ReadOutcomes(ctx, OutcomeFilter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, []string{"t1", "t2", "t1", "t3"}, []string{all[0].TxID, all[1].TxID, all[2].TxID, all[3].TxID})
		assert.Equal(t, outcomes[1], all[1])

		runA, err := s.ReadOutcomes(ctx, OutcomeFilter{RunID: "run-a", Kind: ir.KindBoard})
		require.NoError(t, err)
		assert.Len(t, runA, 2)

		rejected, err := s.ReadOutcomes(ctx, OutcomeFilter{Status: ir.StatusRejected})
		require.NoError(t, err)
		require.Len(t, rejected, 1)
		assert.Equal(t, ir.ReasonBadURLScheme, rejected[0].Reason)

		byTx, err := s.ReadOutcomes(ctx, OutcomeFilter{TxID: "t1", Limit: 1})
		require.NoError(t, err)
		require.Len(t, byTx, 1)
		assert.Equal(t, int64(1), byTx[0].Seq)

		none, err := s.ReadOutcomes(ctx, OutcomeFilter{RunID: "missing"})
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

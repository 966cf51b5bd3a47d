package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
	"github.com/roach88/profilebus/internal/testutil"
)

// seedStore creates a SQLite store at path holding Alice's record.
func seedStore(t *testing.T, path string) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Create(context.Background(), ir.Collection, testutil.AliceTxID, testutil.AliceRecord()))
}

func TestEject_RemovesRecord(t *testing.T) {
	db := t.TempDir() + "/profiles.db"
	seedStore(t, db)

	buf := &bytes.Buffer{}
	cmd := NewEjectCommand(testRoot("json"))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", db, testutil.AliceTxID, "tx-unknown"})
	require.NoError(t, cmd.Execute())

	var outcomes []ir.Outcome
	resp := decodeResponse(t, buf, &outcomes)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, ir.KindEject, o.Kind)
		assert.Equal(t, ir.StatusEjected, o.Status)
	}

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.Lookup(ctx, ir.Collection, testutil.AliceTxID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	logged, err := st.ReadOutcomes(ctx, store.OutcomeFilter{Kind: ir.KindEject})
	require.NoError(t, err)
	assert.Len(t, logged, 2)
}

func TestEject_Text(t *testing.T) {
	db := t.TempDir() + "/profiles.db"

	buf := &bytes.Buffer{}
	cmd := NewEjectCommand(testRoot("text"))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", db, "tx-1"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "ejected tx-1")
}

func TestEject_RequiresTxID(t *testing.T) {
	cmd := NewEjectCommand(testRoot("text"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}

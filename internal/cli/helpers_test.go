package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/testutil"
)

// boardLine encodes a as an action-shape feed line.
func boardLine(t *testing.T, a ir.TransactionAction) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": "board", "action": a})
	require.NoError(t, err)
	return string(data)
}

func ejectLine(txid string) string {
	return `{"type":"eject","txid":"` + txid + `"}`
}

// ftpAction is Alice's action under another id with a rejected photo URL.
func ftpAction() ir.TransactionAction {
	a := testutil.ValidAction("tx-ftp")
	a.Outputs[0].PhotoURL = "ftp://example.com/a.png"
	return a
}

func writeFeed(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// decodeResponse unmarshals a CLIResponse and re-decodes its data into v.
func decodeResponse(t *testing.T, buf *bytes.Buffer, v any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw), buf.String())
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return raw.CLIResponse
}

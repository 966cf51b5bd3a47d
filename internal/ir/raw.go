package ir

import (
	"encoding/json"
	"strconv"
)

// RawTx is the positional transaction layout used by Planaria-style feeds:
//
//	{"tx":{"h":"<txid>"},"blk":{"i":676001},
//	 "in":[{"e":{"a":"<address>"}}],
//	 "out":[{"i":0,"o0":"OP_0","o1":"OP_RETURN","s2":"...","h4":"..."}]}
type RawTx struct {
	Tx  RawTxRef    `json:"tx"`
	Blk *RawBlock   `json:"blk,omitempty"`
	In  []RawInput  `json:"in"`
	Out []RawOutput `json:"out"`
}

// RawTxRef carries the transaction hash.
type RawTxRef struct {
	H string `json:"h"`
}

// RawBlock carries the block height, absent for mempool transactions.
type RawBlock struct {
	I int64 `json:"i"`
}

// RawInput carries the address that signed the input.
type RawInput struct {
	E struct {
		A string `json:"a"`
	} `json:"e"`
}

// RawOutput is one output's positional cells keyed like "o0", "s2", "h4".
// Decode with json.Decoder.UseNumber so "i" stays exact.
type RawOutput map[string]any

// Index returns the output's position in the transaction.
func (o RawOutput) Index() (int, bool) {
	switch v := o["i"].(type) {
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case float64:
		return int(v), v == float64(int(v))
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// Cell returns the string cell at key and whether it was present.
func (o RawOutput) Cell(key string) (string, bool) {
	s, ok := o[key].(string)
	return s, ok
}

// CellAt returns the cell at position pos with the given kind prefix,
// e.g. CellAt("s", 2) reads "s2".
func (o RawOutput) CellAt(kind string, pos int) (string, bool) {
	return o.Cell(kind + strconv.Itoa(pos))
}

package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/protocol"
)

// MalformedError reports a record that could not be decoded.
type MalformedError struct {
	Line   int    // 1-based line in the feed, 0 when not read from a stream
	TxID   string // best effort; empty if the id itself was unreadable
	Reason string
}

func (e *MalformedError) Error() string {
	var b strings.Builder
	b.WriteString("malformed record")
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.TxID != "" {
		fmt.Fprintf(&b, " (tx %s)", e.TxID)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func malformed(txid, format string, args ...any) *MalformedError {
	return &MalformedError{TxID: txid, Reason: fmt.Sprintf(format, args...)}
}

type wireInput struct {
	SigningAddress *string `json:"signingAddress"`
}

type wireOutput struct {
	NamespaceSelector   *string `json:"namespaceSelector"`
	UserID              *string `json:"userID"`
	PrimaryPubKeyHex    *string `json:"primaryPubKeyHex"`
	PrivilegedPubKeyHex *string `json:"privilegedPubKeyHex"`
	TimestampStr        *string `json:"timestampStr"`
	Name                *string `json:"name"`
	PhotoURL            *string `json:"photoURL"`
}

type wireAction struct {
	ID          *string      `json:"id"`
	Inputs      []wireInput  `json:"inputs"`
	Outputs     []wireOutput `json:"outputs"`
	BlockHeight int64        `json:"blockHeight"`
}

// DecodeAction parses the named-field action shape.
//
// id and outputs are required, as is every field of output 0. Later outputs
// and input signing addresses may be absent; an input without an address
// simply never matches the owner check.
func DecodeAction(raw []byte) (ir.TransactionAction, error) {
	var w wireAction
	if err := json.Unmarshal(raw, &w); err != nil {
		return ir.TransactionAction{}, malformed(sniffID(raw), "decode action: %v", err)
	}
	if w.ID == nil {
		return ir.TransactionAction{}, malformed("", "missing id")
	}
	txid := *w.ID
	if w.Outputs == nil {
		return ir.TransactionAction{}, malformed(txid, "missing outputs")
	}

	action := ir.TransactionAction{
		ID:          txid,
		Inputs:      make([]ir.Input, len(w.Inputs)),
		Outputs:     make([]ir.Output, len(w.Outputs)),
		BlockHeight: w.BlockHeight,
	}
	for i, in := range w.Inputs {
		action.Inputs[i] = ir.Input{SigningAddress: deref(in.SigningAddress)}
	}
	for i, out := range w.Outputs {
		if i == 0 {
			if missing := out.missing(); len(missing) > 0 {
				return ir.TransactionAction{}, malformed(txid, "output 0 missing %s", strings.Join(missing, ", "))
			}
		}
		action.Outputs[i] = ir.Output{
			NamespaceSelector:   deref(out.NamespaceSelector),
			UserID:              deref(out.UserID),
			PrimaryPubKeyHex:    deref(out.PrimaryPubKeyHex),
			PrivilegedPubKeyHex: deref(out.PrivilegedPubKeyHex),
			TimestampStr:        deref(out.TimestampStr),
			Name:                deref(out.Name),
			PhotoURL:            deref(out.PhotoURL),
		}
	}
	return action, nil
}

func (o wireOutput) missing() []string {
	var names []string
	check := func(name string, v *string) {
		if v == nil {
			names = append(names, name)
		}
	}
	check("namespaceSelector", o.NamespaceSelector)
	check("userID", o.UserID)
	check("primaryPubKeyHex", o.PrimaryPubKeyHex)
	check("privilegedPubKeyHex", o.PrivilegedPubKeyHex)
	check("timestampStr", o.TimestampStr)
	check("name", o.Name)
	check("photoURL", o.PhotoURL)
	return names
}

// Positional cells of the profile fields after the namespace cell, in
// ir.Output field order. With the default route the namespace is s2, so
// these are s3, h4, h5, s6, s7 and s8.
var profileCells = []struct {
	kind   string
	offset int
}{
	{"s", 1}, // user id
	{"h", 2}, // primary key
	{"h", 3}, // privileged key
	{"s", 4}, // timestamp
	{"s", 5}, // name
	{"s", 6}, // photo URL
}

// DecodePlanaria parses the envelope of a positional transaction record.
// It does not look at output cells; route the result with Route.Match and
// map it with ActionFromRaw.
func DecodePlanaria(raw []byte) (ir.RawTx, error) {
	var tx ir.RawTx
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&tx); err != nil {
		return ir.RawTx{}, malformed(sniffID(raw), "decode transaction: %v", err)
	}
	return tx, nil
}

// ActionFromRaw maps a routed positional transaction onto the action shape.
// The profile output is the one whose "i" cell equals route.OutputIndex, and
// its fields follow the route's namespace cell.
func ActionFromRaw(route protocol.Route, tx ir.RawTx) (ir.TransactionAction, error) {
	if tx.Tx.H == "" {
		return ir.TransactionAction{}, malformed("", "missing tx.h")
	}
	out, ok := route.Output(tx)
	if !ok {
		return ir.TransactionAction{}, malformed(tx.Tx.H, "no output with index %d", route.OutputIndex)
	}

	ns, ok := out.CellAt("s", route.NamespaceField)
	var missing []string
	if !ok {
		missing = append(missing, "s"+strconv.Itoa(route.NamespaceField))
	}
	cells := make([]string, len(profileCells))
	for i, c := range profileCells {
		pos := route.NamespaceField + c.offset
		v, ok := out.CellAt(c.kind, pos)
		if !ok {
			missing = append(missing, c.kind+strconv.Itoa(pos))
		}
		cells[i] = v
	}
	if len(missing) > 0 {
		return ir.TransactionAction{}, malformed(tx.Tx.H, "output %d missing %s", route.OutputIndex, strings.Join(missing, ", "))
	}

	action := ir.TransactionAction{
		ID:     tx.Tx.H,
		Inputs: make([]ir.Input, len(tx.In)),
		Outputs: []ir.Output{{
			NamespaceSelector:   ns,
			UserID:              cells[0],
			PrimaryPubKeyHex:    cells[1],
			PrivilegedPubKeyHex: cells[2],
			TimestampStr:        cells[3],
			Name:                cells[4],
			PhotoURL:            cells[5],
		}},
	}
	for i, in := range tx.In {
		action.Inputs[i] = ir.Input{SigningAddress: in.E.A}
	}
	if tx.Blk != nil {
		action.BlockHeight = tx.Blk.I
	}
	return action, nil
}

// sniffID pulls a transaction id out of a record that failed to decode, so
// the malformed outcome can still be traced back to the chain.
func sniffID(raw []byte) string {
	var probe struct {
		ID   any `json:"id"`
		TxID any `json:"txid"`
		Tx   struct {
			H any `json:"h"`
		} `json:"tx"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}
	for _, v := range []any{probe.ID, probe.TxID, probe.Tx.H} {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/profilebus/internal/engine"
	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/protocol"
)

// Line types in a JSON-lines feed.
const (
	TypeBoard = "board"
	TypeEject = "eject"
)

// envelope is one feed line. A line without "type" but with "tx" is a bare
// positional record, as crawlers write them, and means board.
type envelope struct {
	Type   string          `json:"type"`
	Action json.RawMessage `json:"action"`
	Tx     json.RawMessage `json:"tx"`
	TxID   string          `json:"txid"`
}

// Stats counts what a Reader has seen.
type Stats struct {
	Lines     int `json:"lines"`
	Delivered int `json:"delivered"`
	Malformed int `json:"malformed"`
	Filtered  int `json:"filtered"`
}

// Reader turns a JSON-lines stream into engine events.
//
// Positional records that do not match the route are filtered out, the way
// a subscription filter would have dropped them upstream. Action-shape
// records are not route-filtered; the validator's namespace check covers
// them.
type Reader struct {
	r     *bufio.Reader
	route protocol.Route
	stats Stats
}

// NewReader reads events from r, filtering positional records through route.
func NewReader(r io.Reader, route protocol.Route) *Reader {
	return &Reader{r: bufio.NewReader(r), route: route}
}

// Stats returns counters so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Next returns the next event, or io.EOF when the stream is exhausted.
// A line that cannot be decoded yields a malformed event, not an error;
// only I/O failures are returned as errors.
func (r *Reader) Next() (engine.Event, error) {
	for {
		line, err := r.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return engine.Event{}, io.EOF
			}
			return engine.Event{}, fmt.Errorf("read feed: %w", err)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return engine.Event{}, fmt.Errorf("read feed: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		r.stats.Lines++

		ev, deliver := r.parse(line)
		if !deliver {
			r.stats.Filtered++
			continue
		}
		if ev.Type == engine.EventTypeMalformed {
			r.stats.Malformed++
		}
		r.stats.Delivered++
		return ev, nil
	}
}

// parse decodes one non-empty line. deliver is false for filtered records.
func (r *Reader) parse(line []byte) (ev engine.Event, deliver bool) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return r.malformedEvent(sniffID(line), fmt.Sprintf("decode line: %v", err)), true
	}

	switch {
	case env.Type == TypeEject:
		if env.TxID == "" {
			return r.malformedEject("eject without txid"), true
		}
		return engine.EjectEvent(env.TxID), true

	case env.Type == TypeBoard && len(env.Action) > 0:
		action, err := DecodeAction(env.Action)
		if err != nil {
			return r.malformedFrom(err), true
		}
		return engine.BoardEvent(action), true

	case (env.Type == TypeBoard || env.Type == "") && len(env.Tx) > 0:
		// The whole line is the positional record; for enveloped lines
		// "tx" is itself the record.
		raw := line
		if env.Type == TypeBoard {
			raw = env.Tx
		}
		tx, err := DecodePlanaria(raw)
		if err != nil {
			return r.malformedFrom(err), true
		}
		// Other protocols' transactions are not ours to reject.
		if !r.route.Match(tx) {
			return engine.Event{}, false
		}
		action, err := ActionFromRaw(r.route, tx)
		if err != nil {
			return r.malformedFrom(err), true
		}
		return engine.BoardEvent(action), true

	case env.Type == TypeBoard:
		return r.malformedEvent(env.TxID, "board without action or tx"), true

	default:
		return r.malformedEvent(env.TxID, fmt.Sprintf("unknown line type %q", env.Type)), true
	}
}

func (r *Reader) malformedEvent(txid, reason string) engine.Event {
	return r.malformedFrom(&MalformedError{TxID: txid, Reason: reason})
}

func (r *Reader) malformedEject(reason string) engine.Event {
	me := &MalformedError{Line: r.stats.Lines, Reason: reason}
	return engine.MalformedEjectEvent("", me)
}

func (r *Reader) malformedFrom(err error) engine.Event {
	var me *MalformedError
	if !errors.As(err, &me) {
		me = &MalformedError{Reason: err.Error()}
	}
	me.Line = r.stats.Lines
	return engine.MalformedEvent(me.TxID, me)
}

// Pump reads every event from r into sink until EOF, ctx cancellation, or
// sink returning false. Returns the number of events handed to sink.
func Pump(ctx context.Context, r *Reader, sink func(engine.Event) bool) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if !sink(ev) {
			return n, nil
		}
		n++
	}
}

// Actions collects the board actions from a feed, skipping ejects and
// malformed lines. Used for validate-only runs.
func Actions(r *Reader) ([]ir.TransactionAction, []engine.Event, error) {
	var (
		actions []ir.TransactionAction
		other   []engine.Event
	)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return actions, other, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if ev.Type == engine.EventTypeBoard {
			actions = append(actions, *ev.Action)
			continue
		}
		other = append(other, ev)
	}
}

package feed

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilebus/internal/engine"
	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/protocol"
	"github.com/roach88/profilebus/internal/testutil"
)

func readAll(t *testing.T, r *Reader) []engine.Event {
	t.Helper()
	var events []engine.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestReader_MixedFeed(t *testing.T) {
	other := alicePlanaria()
	other["out"].([]any)[1].(map[string]any)["s2"] = "1SomeOtherProtocol"

	lines := []string{
		`{"type":"board","action":` + string(aliceJSON(t)) + `}`,
		``,
		string(mustJSON(t, alicePlanaria())),
		`{"type":"board","tx":` + string(mustJSON(t, alicePlanaria())) + `}`,
		string(mustJSON(t, other)),
		`{"type":"eject","txid":"` + testutil.AliceTxID + `"}`,
		`{"type":"board","action":{"id":"broken"}}`,
		`not json at all`,
		`{"type":"eject"}`,
		`{"type":"mystery","txid":"m1"}`,
	}
	r := NewReader(strings.NewReader(strings.Join(lines, "\n")), protocol.DefaultRoute())

	events := readAll(t, r)
	require.Len(t, events, 8)

	types := make([]engine.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	assert.Equal(t, []engine.EventType{
		engine.EventTypeBoard,
		engine.EventTypeBoard,
		engine.EventTypeBoard,
		engine.EventTypeEject,
		engine.EventTypeMalformed,
		engine.EventTypeMalformed,
		engine.EventTypeMalformed,
		engine.EventTypeMalformed,
	}, types)

	assert.Equal(t, testutil.AliceAction(), *events[0].Action)
	assert.Equal(t, int64(676001), events[1].Action.BlockHeight)
	assert.Equal(t, testutil.AliceTxID, events[3].TxID)

	broken := events[4]
	assert.Equal(t, "broken", broken.TxID)
	var me *MalformedError
	require.ErrorAs(t, broken.Err, &me)
	assert.Equal(t, 6, me.Line, "blank lines are not counted")
	assert.Contains(t, me.Reason, "missing outputs")

	assert.Contains(t, events[6].Err.Error(), "eject without txid")
	assert.Equal(t, ir.KindEject, events[6].Kind)
	assert.Equal(t, ir.KindBoard, events[4].Kind)
	assert.Equal(t, "m1", events[7].TxID)

	assert.Equal(t, Stats{Lines: 9, Delivered: 8, Malformed: 4, Filtered: 1}, r.Stats())
}

func TestReader_FiltersUnrelatedTransactions(t *testing.T) {
	lines := []string{
		// Another OP_RETURN protocol carrying only some of the profile cells.
		`{"tx":{"h":"aa"},"in":[{"e":{"a":"1x"}}],"out":[{"i":0,"o0":"OP_0","o1":"OP_RETURN","s2":"19HxigV4QyBv3tHpQVcUEQyq1pzZVdoAut","s3":"hello"}]}`,
		// No output at the route's index.
		`{"tx":{"h":"bb"},"out":[{"i":1,"o0":"OP_DUP"}]}`,
		`{"type":"board","tx":{"tx":{"h":"cc"},"out":[{"i":0,"o0":"OP_DUP"}]}}`,
	}
	r := NewReader(strings.NewReader(strings.Join(lines, "\n")), protocol.DefaultRoute())

	assert.Empty(t, readAll(t, r))
	assert.Equal(t, Stats{Lines: 3, Filtered: 3}, r.Stats())
}

func TestReader_MatchingButIncompleteIsMalformed(t *testing.T) {
	partial := alicePlanaria()
	delete(partial["out"].([]any)[1].(map[string]any), "s8")

	r := NewReader(strings.NewReader(string(mustJSON(t, partial))), protocol.DefaultRoute())
	events := readAll(t, r)
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventTypeMalformed, events[0].Type)
	assert.Equal(t, testutil.AliceTxID, events[0].TxID)
	assert.Contains(t, events[0].Err.Error(), "output 0 missing s8")
	assert.Equal(t, Stats{Lines: 1, Delivered: 1, Malformed: 1}, r.Stats())
}

func TestReader_NoTrailingNewline(t *testing.T) {
	r := NewReader(strings.NewReader(`{"type":"eject","txid":"a"}`), protocol.DefaultRoute())
	events := readAll(t, r)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].TxID)
}

func TestReader_LongLine(t *testing.T) {
	a := testutil.AliceAction()
	a.Outputs[0].Name = strings.Repeat("x", 256*1024)
	line := `{"type":"board","action":` + string(mustJSON(t, a)) + "}\n"

	events := readAll(t, NewReader(strings.NewReader(line), protocol.DefaultRoute()))
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventTypeBoard, events[0].Type)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("socket closed") }

func TestReader_IOError(t *testing.T) {
	_, err := NewReader(failingReader{}, protocol.DefaultRoute()).Next()
	assert.ErrorContains(t, err, "read feed: socket closed")
}

func TestPump(t *testing.T) {
	feed := "{\"type\":\"eject\",\"txid\":\"a\"}\n{\"type\":\"eject\",\"txid\":\"b\"}\n{\"type\":\"eject\",\"txid\":\"c\"}\n"

	var got []string
	n, err := Pump(context.Background(), NewReader(strings.NewReader(feed), protocol.DefaultRoute()), func(ev engine.Event) bool {
		got = append(got, ev.TxID)
		return len(got) < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "stops when sink refuses")
	assert.Equal(t, []string{"a", "b"}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Pump(ctx, NewReader(strings.NewReader(feed), protocol.DefaultRoute()), func(engine.Event) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActions(t *testing.T) {
	feed := strings.Join([]string{
		`{"type":"board","action":` + string(aliceJSON(t)) + `}`,
		`{"type":"eject","txid":"x"}`,
		`{"type":"board","action":{}}`,
	}, "\n")

	actions, other, err := Actions(NewReader(strings.NewReader(feed), protocol.DefaultRoute()))
	require.NoError(t, err)
	assert.Equal(t, []ir.TransactionAction{testutil.AliceAction()}, actions)
	require.Len(t, other, 2)
	assert.Equal(t, engine.EventTypeEject, other[0].Type)
	assert.Equal(t, engine.EventTypeMalformed, other[1].Type)
}

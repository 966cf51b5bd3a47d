package engine

import (
	"sync"

	"github.com/roach88/profilebus/internal/ir"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeBoard carries a candidate action to validate and project.
	EventTypeBoard EventType = iota + 1
	// EventTypeEject carries a transaction id to retract.
	EventTypeEject
	// EventTypeMalformed carries a feed record that failed to parse.
	EventTypeMalformed
)

func (t EventType) String() string {
	switch t {
	case EventTypeBoard:
		return "board"
	case EventTypeEject:
		return "eject"
	case EventTypeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Event is the unit of work on the engine queue.
type Event struct {
	Type   EventType
	Action *ir.TransactionAction // EventTypeBoard
	TxID   string                // EventTypeEject; best-effort id for EventTypeMalformed
	Err    error                 // EventTypeMalformed: why decoding failed

	// Kind is the outcome kind a malformed line was meant to be. Empty
	// means board.
	Kind ir.OutcomeKind
}

// BoardEvent wraps an action for Enqueue.
func BoardEvent(a ir.TransactionAction) Event {
	return Event{Type: EventTypeBoard, Action: &a, TxID: a.ID}
}

// EjectEvent wraps a retraction for Enqueue.
func EjectEvent(txid string) Event {
	return Event{Type: EventTypeEject, TxID: txid}
}

// MalformedEvent wraps a board line that failed to decode.
func MalformedEvent(txid string, err error) Event {
	return Event{Type: EventTypeMalformed, TxID: txid, Err: err, Kind: ir.KindBoard}
}

// MalformedEjectEvent wraps an eject line that failed to decode.
func MalformedEjectEvent(txid string, err error) Event {
	return Event{Type: EventTypeMalformed, TxID: txid, Err: err, Kind: ir.KindEject}
}

// eventQueue is a thread-safe unbounded FIFO queue for events.
//
// Unbounded so a fast feed never blocks on a slow store; the feed's own
// backpressure (file reads, socket buffers) bounds memory in practice.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain the action
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed once the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Drained reports whether the queue is closed and empty.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.events) == 0
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Package engine runs the profile pipeline: validate, then project or
// retract, then record exactly one Outcome per event.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Feeds call Enqueue from any goroutine. Engine.Run dequeues events in FIFO
// order and handles them one at a time, so store mutations issued by one
// engine never interleave. Backends still serialize per id on their own,
// which keeps several engines against one database safe.
//
// Event Processing Flow:
//  1. Event enqueued (board, eject, or malformed)
//  2. Board: start-height gate, then validator.Validate
//  3. Accepted: Projector.Board calls StateStore.Create
//  4. Eject: Retractor.Eject calls StateStore.Delete
//  5. The Outcome is stamped with seq and run id and fanned out to every
//     Recorder (logs, metrics, audit log)
//
// ERROR HANDLING:
// Nothing aborts the stream. A rejection is an Outcome, and is returned as
// a *validator.RejectionError only under the surface policy. A store failure
// is an Outcome with status "error"; Run logs it and moves on. Recorder
// failures are logged and ignored. There are no retries: redelivery from the
// feed is the retry mechanism and the store contract makes it idempotent.
package engine

package ir

// OutcomeKind distinguishes board (project) from eject (retract) handling.
type OutcomeKind string

const (
	KindBoard OutcomeKind = "board"
	KindEject OutcomeKind = "eject"
)

// OutcomeStatus is the terminal state of one processed event.
type OutcomeStatus string

const (
	// StatusAccepted means the action validated and its record was created
	// (or already existed with identical data).
	StatusAccepted OutcomeStatus = "accepted"

	// StatusRejected means validation failed; no store mutation happened.
	StatusRejected OutcomeStatus = "rejected"

	// StatusEjected means a retraction was applied (or was a no-op).
	StatusEjected OutcomeStatus = "ejected"

	// StatusSkipped means the action predates the configured starting height.
	StatusSkipped OutcomeStatus = "skipped"

	// StatusError means a store call failed.
	StatusError OutcomeStatus = "error"
)

// Outcome is the auditable trace of one processed event.
// Every event delivered to the pipeline produces exactly one Outcome.
type Outcome struct {
	Seq    int64         `json:"seq"`    // Logical clock, per run
	RunID  string        `json:"run_id"` // Ingestion run correlation id
	Kind   OutcomeKind   `json:"kind"`
	TxID   string        `json:"txid"`
	Status OutcomeStatus `json:"status"`
	Reason ReasonCode    `json:"reason,omitempty"`
	Detail string        `json:"detail,omitempty"`
	Error  string        `json:"error,omitempty"`
}

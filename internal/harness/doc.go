// Package harness runs YAML conformance scenarios through the real engine.
//
// # Scenario Format
//
//	name: alice_boards
//	description: "A valid profile is projected literally"
//	store: sqlite          # memory (default) | sqlite
//	policy: drop           # drop (default) | surface
//	start_height: 0
//	run_id: run-alice
//	steps:
//	  - board:
//	      fixture: alice
//	      output: { name: "Alice B" }
//	    expect: { status: accepted }
//	  - eject: a1ce...
//	    expect: { status: ejected }
//	assertions:
//	  - type: record_absent
//	    id: a1ce...
//	  - type: outcome_count
//	    status: accepted
//	    count: 1
//
// A board step either overrides the built-in "alice" fixture or carries a
// complete action document in feed field names. Documents that fail to
// decode are delivered as malformed events, so they show up as
// MALFORMED_INPUT rejections.
//
// # Assertion Types
//
//   - record_present: the profile record exists
//   - record_absent: the profile record does not exist
//   - record_fields: the record has the listed field values
//   - outcome_count: exactly N recorded outcomes match status/reason/kind
//
// # Deterministic Testing
//
// Every scenario runs against a fresh store with a deterministic logical
// clock and a fixed run id, so the outcome trace is byte-stable and can be
// compared against golden files under testdata/golden.
package harness

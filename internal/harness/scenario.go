package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/profilebus/internal/engine"
	"github.com/roach88/profilebus/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario feeds a sequence of board and eject steps through the engine
// and asserts on the resulting outcomes and final store state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Store selects the backend: "memory" (default) or "sqlite".
	Store string `yaml:"store,omitempty"`

	// Policy is the reject policy, "drop" (default) or "surface".
	Policy string `yaml:"policy,omitempty"`

	// StartHeight skips confirmed actions mined below it. Zero disables the gate.
	StartHeight int64 `yaml:"start_height,omitempty"`

	// RunID is a fixed run id for deterministic traces.
	// If empty, defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Steps are processed in order, one outcome each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final outcomes and state.
	// Supported types: record_present, record_absent, record_fields, outcome_count
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one feed event. Exactly one of Board or Eject is set.
type Step struct {
	Board *BoardStep `yaml:"board,omitempty"`

	// Eject is the transaction id to retract.
	Eject string `yaml:"eject,omitempty"`

	// Expect validates the outcome of this step. If nil, any outcome passes.
	Expect *Expect `yaml:"expect,omitempty"`
}

// BoardStep describes the action to deliver.
//
// Either Action holds a complete action document in feed field names, or
// Fixture names a base action that the remaining fields override.
type BoardStep struct {
	// Fixture is a built-in base action. Only "alice" is defined.
	Fixture string `yaml:"fixture,omitempty"`

	// Action is decoded exactly like a feed action line. Decode failures
	// become malformed events.
	Action map[string]any `yaml:"action,omitempty"`

	// ID overrides the fixture's transaction id.
	ID string `yaml:"id,omitempty"`

	// BlockHeight sets the mined height.
	BlockHeight int64 `yaml:"block_height,omitempty"`

	// Output overrides output 0 fields, keyed by feed field name
	// (namespaceSelector, userID, primaryPubKeyHex, ...).
	Output map[string]string `yaml:"output,omitempty"`

	// Signers replaces the input signing addresses when non-nil.
	Signers []string `yaml:"signers,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	Status ir.OutcomeStatus `yaml:"status"`

	// Reason is compared only when set.
	Reason ir.ReasonCode `yaml:"reason,omitempty"`
}

// Assertion validates final state or the outcome log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "record_present": the record with ID exists
	// - "record_absent": the record with ID does not exist
	// - "record_fields": the record with ID has the given field values
	// - "outcome_count": exactly Count outcomes match Status/Reason/Kind
	Type string `yaml:"type"`

	// ID is the record id (used by record_*).
	ID string `yaml:"id,omitempty"`

	// Fields are expected record values keyed by JSON field name
	// (used by record_fields). Subset match.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Status, Reason and Kind filter outcomes (used by outcome_count).
	Status ir.OutcomeStatus `yaml:"status,omitempty"`
	Reason ir.ReasonCode    `yaml:"reason,omitempty"`
	Kind   ir.OutcomeKind   `yaml:"kind,omitempty"`

	// Count is the expected number of matching outcomes (used by outcome_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordPresent = "record_present"
	AssertRecordAbsent  = "record_absent"
	AssertRecordFields  = "record_fields"
	AssertOutcomeCount  = "outcome_count"
)

// Store backends a scenario may select.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// FixtureAlice is the only built-in base action.
const FixtureAlice = "alice"

var validStatuses = []ir.OutcomeStatus{
	ir.StatusAccepted,
	ir.StatusRejected,
	ir.StatusEjected,
	ir.StatusSkipped,
	ir.StatusError,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Store {
	case "", StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StoreSQLite, s.Store)
	}

	if s.Policy != "" {
		if _, err := engine.ParseRejectPolicy(s.Policy); err != nil {
			return err
		}
	}

	if s.StartHeight < 0 {
		return fmt.Errorf("start_height must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step) error {
	switch {
	case step.Board == nil && step.Eject == "":
		return fmt.Errorf("steps[%d]: board or eject is required", index)
	case step.Board != nil && step.Eject != "":
		return fmt.Errorf("steps[%d]: board and eject are mutually exclusive", index)
	}

	if b := step.Board; b != nil {
		switch {
		case b.Action != nil && b.Fixture != "":
			return fmt.Errorf("steps[%d].board: action and fixture are mutually exclusive", index)
		case b.Action == nil && b.Fixture == "":
			return fmt.Errorf("steps[%d].board: action or fixture is required", index)
		case b.Fixture != "" && b.Fixture != FixtureAlice:
			return fmt.Errorf("steps[%d].board: unknown fixture %q", index, b.Fixture)
		}
		for field := range b.Output {
			if _, ok := outputSetters[field]; !ok {
				return fmt.Errorf("steps[%d].board: unknown output field %q", index, field)
			}
		}
	}

	if e := step.Expect; e != nil {
		if !slices.Contains(validStatuses, e.Status) {
			return fmt.Errorf("steps[%d].expect: unknown status %q", index, e.Status)
		}
		if e.Reason != ir.ReasonNone && !e.Reason.IsValid() {
			return fmt.Errorf("steps[%d].expect: unknown reason %q", index, e.Reason)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecordPresent, AssertRecordAbsent:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
	case AssertRecordFields:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for record_fields", index)
		}
		if len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: fields are required for record_fields", index)
		}
	case AssertOutcomeCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
		if a.Status != "" && !slices.Contains(validStatuses, a.Status) {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

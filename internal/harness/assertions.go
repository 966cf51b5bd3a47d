package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the outcome trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Outcomes []ir.Outcome // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nOutcomes:\n")
	for _, o := range e.Outcomes {
		fmt.Fprintf(&buf, "  [%d] %s %s %s", o.Seq, o.Kind, o.TxID, o.Status)
		if o.Reason != ir.ReasonNone {
			fmt.Fprintf(&buf, " %s", o.Reason)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store store.Backend
	Ctx   context.Context
	RunID string
}

func assertRecordPresent(actx *AssertionContext, outcomes []ir.Outcome, a Assertion) error {
	_, err := actx.Store.Lookup(actx.Ctx, ir.Collection, a.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &AssertionError{
			Type:     AssertRecordPresent,
			Expected: fmt.Sprintf("record %s present", a.ID),
			Actual:   "not found",
			Outcomes: outcomes,
		}
	default:
		return fmt.Errorf("lookup %s: %w", a.ID, err)
	}
}

func assertRecordAbsent(actx *AssertionContext, outcomes []ir.Outcome, a Assertion) error {
	rec, err := actx.Store.Lookup(actx.Ctx, ir.Collection, a.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup %s: %w", a.ID, err)
	default:
		return &AssertionError{
			Type:     AssertRecordAbsent,
			Expected: fmt.Sprintf("record %s absent", a.ID),
			Actual:   fmt.Sprintf("found record for user %s", rec.UserID),
			Outcomes: outcomes,
		}
	}
}

// assertRecordFields checks a subset of record fields. Values are compared
// by their canonical JSON, so YAML ints match integer fields.
func assertRecordFields(actx *AssertionContext, outcomes []ir.Outcome, a Assertion) error {
	rec, err := actx.Store.Lookup(actx.Ctx, ir.Collection, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertRecordFields,
			Expected: fmt.Sprintf("record %s with fields %v", a.ID, a.Fields),
			Actual:   "not found",
			Outcomes: outcomes,
		}
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", a.ID, err)
	}

	obj := rec.Object()
	for _, key := range sortedKeys(a.Fields) {
		actual, ok := obj[key]
		if !ok {
			return fmt.Errorf("record_fields: unknown field %q", key)
		}
		equal, err := canonicalEqual(a.Fields[key], actual)
		if err != nil {
			return fmt.Errorf("record_fields: field %q: %w", key, err)
		}
		if !equal {
			return &AssertionError{
				Type:     AssertRecordFields,
				Expected: fmt.Sprintf("%s.%s = %v", a.ID, key, a.Fields[key]),
				Actual:   fmt.Sprintf("%v", actual),
				Outcomes: outcomes,
			}
		}
	}
	return nil
}

// assertOutcomeCount counts matching outcomes in the store's audit log,
// not in the in-memory trace, so the audit path is exercised too.
func assertOutcomeCount(actx *AssertionContext, outcomes []ir.Outcome, a Assertion) error {
	logged, err := actx.Store.ReadOutcomes(actx.Ctx, store.OutcomeFilter{
		RunID:  actx.RunID,
		Kind:   a.Kind,
		Status: a.Status,
	})
	if err != nil {
		return fmt.Errorf("read outcomes: %w", err)
	}

	count := 0
	for _, o := range logged {
		if a.Reason == ir.ReasonNone || o.Reason == a.Reason {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d outcomes matching %s", a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d", count),
			Outcomes: outcomes,
		}
	}
	return nil
}

func describeFilter(a Assertion) string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, "kind="+string(a.Kind))
	}
	if a.Status != "" {
		parts = append(parts, "status="+string(a.Status))
	}
	if a.Reason != ir.ReasonNone {
		parts = append(parts, "reason="+string(a.Reason))
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func canonicalEqual(expected any, actual ir.IRValue) (bool, error) {
	want, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false, err
	}
	got, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Store == nil {
			err = fmt.Errorf("assertion[%d]: %s requires a store", i, assertion.Type)
		} else {
			switch assertion.Type {
			case AssertRecordPresent:
				err = assertRecordPresent(actx, result.Outcomes, assertion)
			case AssertRecordAbsent:
				err = assertRecordAbsent(actx, result.Outcomes, assertion)
			case AssertRecordFields:
				err = assertRecordFields(actx, result.Outcomes, assertion)
			case AssertOutcomeCount:
				err = assertOutcomeCount(actx, result.Outcomes, assertion)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

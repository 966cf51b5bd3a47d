package engine

import "fmt"

// RejectPolicy decides what a caller sees when validation rejects an action.
// The Outcome is recorded either way.
type RejectPolicy string

const (
	// PolicyDrop records the rejection and returns nil.
	PolicyDrop RejectPolicy = "drop"

	// PolicySurface records the rejection and returns a
	// *validator.RejectionError.
	PolicySurface RejectPolicy = "surface"
)

// ParseRejectPolicy accepts "drop" or "surface". Empty means drop.
func ParseRejectPolicy(s string) (RejectPolicy, error) {
	switch RejectPolicy(s) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicySurface:
		return PolicySurface, nil
	default:
		return "", fmt.Errorf("unknown reject policy %q (want drop or surface)", s)
	}
}

// apply filters a rejection error through the policy.
func (p RejectPolicy) apply(rejection error) error {
	if p == PolicySurface {
		return rejection
	}
	return nil
}

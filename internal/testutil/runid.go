package testutil

// DefaultRunID is used when a scenario does not name its own run id.
const DefaultRunID = "test-run-00000000-0000-0000-0000-000000000001"

// FixedRunID always returns the same run id, so golden traces stay
// byte-identical across runs. It satisfies engine.RunIDGenerator.
type FixedRunID string

// Generate returns the fixed id, or DefaultRunID if empty.
func (f FixedRunID) Generate() string {
	if f == "" {
		return DefaultRunID
	}
	return string(f)
}

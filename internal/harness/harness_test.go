package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/testutil"
	"github.com/roach88/profilebus/internal/validator"
)

func TestRun_AliceAccepted(t *testing.T) {
	for _, backend := range []string{StoreMemory, StoreSQLite} {
		t.Run(backend, func(t *testing.T) {
			scenario := &Scenario{
				Name:        "alice",
				Description: "Alice boards",
				Store:       backend,
				Steps: []Step{
					{Board: &BoardStep{Fixture: FixtureAlice}, Expect: &Expect{Status: ir.StatusAccepted}},
				},
				Assertions: []Assertion{
					{Type: AssertRecordPresent, ID: testutil.AliceTxID},
					{Type: AssertRecordFields, ID: testutil.AliceTxID, Fields: map[string]any{
						"name":      "Alice",
						"timestamp": 1700000000,
					}},
					{Type: AssertOutcomeCount, Status: ir.StatusAccepted, Count: 1},
				},
			}

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, testutil.DefaultRunID, result.RunID)

			require.Len(t, result.Outcomes, 1)
			out := result.Outcomes[0]
			assert.Equal(t, int64(1), out.Seq)
			assert.Equal(t, testutil.DefaultRunID, out.RunID)
			assert.Equal(t, ir.KindBoard, out.Kind)
			assert.Equal(t, ir.StatusAccepted, out.Status)
		})
	}
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "expects acceptance of a bad URL",
		Steps: []Step{
			{
				Board:  &BoardStep{Fixture: FixtureAlice, Output: map[string]string{"photoURL": "ftp://x"}},
				Expect: &Expect{Status: ir.StatusAccepted},
			},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected status accepted, got rejected")
	assert.Contains(t, result.Errors[0], "BAD_URL_SCHEME")
}

func TestRun_ReasonMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "reason",
		Description: "wrong reason",
		Steps: []Step{
			{
				Board:  &BoardStep{Fixture: FixtureAlice, Output: map[string]string{"name": ""}, Signers: []string{}},
				Expect: &Expect{Status: ir.StatusRejected, Reason: ir.ReasonNameTooLong},
			},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected reason NAME_TOO_LONG, got "UNSIGNED_BY_OWNER"`)
}

func TestRun_SurfacePolicyStillRecords(t *testing.T) {
	scenario := &Scenario{
		Name:        "surface",
		Description: "surfaced rejections are still outcomes",
		Policy:      "surface",
		Steps: []Step{
			{Board: &BoardStep{Fixture: FixtureAlice, ID: "tx-bad", Output: map[string]string{"namespaceSelector": "x"}}},
			{Board: &BoardStep{Fixture: FixtureAlice, ID: "tx-good"}},
		},
		Assertions: []Assertion{
			{Type: AssertOutcomeCount, Status: ir.StatusRejected, Reason: ir.ReasonNamespaceMismatch, Count: 1},
			{Type: AssertRecordPresent, ID: "tx-good"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, ir.StatusRejected, result.Outcomes[0].Status)
	assert.Equal(t, ir.StatusAccepted, result.Outcomes[1].Status)
}

func TestRun_WithRules(t *testing.T) {
	rules := validator.DefaultRules()
	rules.MaxNameLength = 3

	scenario := &Scenario{
		Name:        "rules",
		Description: "custom rules",
		Steps: []Step{
			{Board: &BoardStep{Fixture: FixtureAlice}, Expect: &Expect{Status: ir.StatusRejected, Reason: ir.ReasonNameTooLong}},
		},
	}

	result, err := Run(context.Background(), scenario, WithRules(rules))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ActionDocument(t *testing.T) {
	alice := testutil.AliceAction()
	out := alice.Outputs[0]
	scenario := &Scenario{
		Name:        "document",
		Description: "board from a raw action document",
		Steps: []Step{
			{
				Board: &BoardStep{Action: map[string]any{
					"id":     "tx-doc",
					"inputs": []any{map[string]any{"signingAddress": testutil.AliceAddress}},
					"outputs": []any{map[string]any{
						"namespaceSelector":   out.NamespaceSelector,
						"userID":              out.UserID,
						"primaryPubKeyHex":    out.PrimaryPubKeyHex,
						"privilegedPubKeyHex": out.PrivilegedPubKeyHex,
						"timestampStr":        out.TimestampStr,
						"name":                "Doc",
						"photoURL":            "uhrp://abc",
					}},
				}},
				Expect: &Expect{Status: ir.StatusAccepted},
			},
			{
				Board:  &BoardStep{Action: map[string]any{"outputs": []any{}}},
				Expect: &Expect{Status: ir.StatusRejected, Reason: ir.ReasonMalformedInput},
			},
		},
		Assertions: []Assertion{
			{Type: AssertRecordFields, ID: "tx-doc", Fields: map[string]any{"name": "Doc", "photoURL": "uhrp://abc"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "", result.Outcomes[1].TxID)
	assert.Contains(t, result.Outcomes[1].Detail, "missing id")
}

func TestRun_AllScenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestBuildEvent_FixtureOverrides(t *testing.T) {
	ev, err := buildEvent(Step{Board: &BoardStep{
		Fixture:     FixtureAlice,
		ID:          "tx-9",
		BlockHeight: 42,
		Output:      map[string]string{"userID": "1Bob", "timestampStr": "1"},
		Signers:     []string{"1Bob"},
	}})
	require.NoError(t, err)
	require.NotNil(t, ev.Action)

	a := *ev.Action
	assert.Equal(t, "tx-9", a.ID)
	assert.Equal(t, int64(42), a.BlockHeight)
	assert.Equal(t, "1Bob", a.Outputs[0].UserID)
	assert.Equal(t, "1", a.Outputs[0].TimestampStr)
	assert.Equal(t, []ir.Input{{SigningAddress: "1Bob"}}, a.Inputs)

	// The fixture itself is untouched.
	assert.Equal(t, testutil.AliceTxID, testutil.AliceAction().ID)
}

func TestBuildEvent_Eject(t *testing.T) {
	ev, err := buildEvent(Step{Eject: "tx-1"})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", ev.TxID)
	assert.Nil(t, ev.Action)
}

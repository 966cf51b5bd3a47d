package validator

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/testutil"
)

func withOutput(mutate func(out *ir.Output)) ir.TransactionAction {
	a := testutil.AliceAction()
	mutate(&a.Outputs[0])
	return a
}

func TestValidate_AcceptsAlice(t *testing.T) {
	v := Validate(DefaultRules(), testutil.AliceAction())

	require.True(t, v.Accepted)
	assert.Equal(t, ir.ReasonNone, v.Reason)
	assert.Equal(t, testutil.AliceTimestamp, v.Normalized.Timestamp)
	assert.NoError(t, v.Err(testutil.AliceTxID))
}

func TestValidate_SingleFailures(t *testing.T) {
	testCases := []struct {
		name   string
		action ir.TransactionAction
		want   ir.ReasonCode
	}{
		{
			name: "empty id",
			action: func() ir.TransactionAction {
				a := testutil.AliceAction()
				a.ID = ""
				return a
			}(),
			want: ir.ReasonMalformedInput,
		},
		{
			name: "no outputs",
			action: func() ir.TransactionAction {
				a := testutil.AliceAction()
				a.Outputs = nil
				return a
			}(),
			want: ir.ReasonMalformedInput,
		},
		{
			name:   "wrong namespace",
			action: withOutput(func(o *ir.Output) { o.NamespaceSelector = "1NotTheProtocol" }),
			want:   ir.ReasonNamespaceMismatch,
		},
		{
			name:   "user did not sign",
			action: withOutput(func(o *ir.Output) { o.UserID = "1Mallory" }),
			want:   ir.ReasonUnsignedByOwner,
		},
		{
			name:   "empty user id",
			action: withOutput(func(o *ir.Output) { o.UserID = "" }),
			want:   ir.ReasonUnsignedByOwner,
		},
		{
			name:   "primary key not hex",
			action: withOutput(func(o *ir.Output) { o.PrimaryPubKeyHex = strings.Repeat("zz", 33) }),
			want:   ir.ReasonBadKeyLength,
		},
		{
			name:   "privileged key empty",
			action: withOutput(func(o *ir.Output) { o.PrivilegedPubKeyHex = "" }),
			want:   ir.ReasonBadKeyLength,
		},
		{
			name:   "timestamp not numeric",
			action: withOutput(func(o *ir.Output) { o.TimestampStr = "17e8" }),
			want:   ir.ReasonBadTimestamp,
		},
		{
			name:   "timestamp with whitespace",
			action: withOutput(func(o *ir.Output) { o.TimestampStr = " 1700000000" }),
			want:   ir.ReasonBadTimestamp,
		},
		{
			name:   "timestamp empty",
			action: withOutput(func(o *ir.Output) { o.TimestampStr = "" }),
			want:   ir.ReasonBadTimestamp,
		},
		{
			name:   "timestamp negative",
			action: withOutput(func(o *ir.Output) { o.TimestampStr = "-1" }),
			want:   ir.ReasonTimestampOutOfRange,
		},
		{
			name:   "name too long",
			action: withOutput(func(o *ir.Output) { o.Name = strings.Repeat("a", 65) }),
			want:   ir.ReasonNameTooLong,
		},
		{
			name:   "ftp photo",
			action: withOutput(func(o *ir.Output) { o.PhotoURL = "ftp://example.com/a.png" }),
			want:   ir.ReasonBadURLScheme,
		},
		{
			name:   "empty photo",
			action: withOutput(func(o *ir.Output) { o.PhotoURL = "" }),
			want:   ir.ReasonBadURLScheme,
		},
		{
			name:   "http is not https",
			action: withOutput(func(o *ir.Output) { o.PhotoURL = "http://example.com/a.png" }),
			want:   ir.ReasonBadURLScheme,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := Validate(DefaultRules(), tc.action)
			assert.False(t, v.Accepted)
			assert.Equal(t, tc.want, v.Reason)
			assert.NotEmpty(t, v.Detail)
		})
	}
}

func TestValidate_FirstFailureWins(t *testing.T) {
	a := withOutput(func(o *ir.Output) {
		o.NamespaceSelector = "1Other"
		o.PhotoURL = "ftp://x"
		o.Name = strings.Repeat("n", 200)
	})
	assert.Equal(t, ir.ReasonNamespaceMismatch, Validate(DefaultRules(), a).Reason)

	a = withOutput(func(o *ir.Output) {
		o.TimestampStr = "abc"
		o.PhotoURL = "ftp://x"
	})
	assert.Equal(t, ir.ReasonBadTimestamp, Validate(DefaultRules(), a).Reason)
}

func TestValidate_KeyLengthBoundaries(t *testing.T) {
	for _, n := range []int{64, 65, 66, 67, 68} {
		t.Run(fmt.Sprintf("%d hex chars", n), func(t *testing.T) {
			key := strings.Repeat("a", n)
			primary := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.PrimaryPubKeyHex = key }))
			privileged := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.PrivilegedPubKeyHex = key }))

			if n == 66 {
				assert.True(t, primary.Accepted)
				assert.True(t, privileged.Accepted)
				return
			}
			assert.Equal(t, ir.ReasonBadKeyLength, primary.Reason)
			assert.Equal(t, ir.ReasonBadKeyLength, privileged.Reason)
		})
	}
}

func TestValidate_TimestampBoundaries(t *testing.T) {
	testCases := []struct {
		ts     int64
		accept bool
	}{
		{DefaultMinTimestamp - 1, false},
		{DefaultMinTimestamp, true},
		{DefaultMaxTimestamp, true},
		{DefaultMaxTimestamp + 1, false},
	}

	for _, tc := range testCases {
		t.Run(strconv.FormatInt(tc.ts, 10), func(t *testing.T) {
			v := Validate(DefaultRules(), withOutput(func(o *ir.Output) {
				o.TimestampStr = strconv.FormatInt(tc.ts, 10)
			}))
			if tc.accept {
				require.True(t, v.Accepted)
				assert.Equal(t, tc.ts, v.Normalized.Timestamp)
				return
			}
			assert.Equal(t, ir.ReasonTimestampOutOfRange, v.Reason)
		})
	}
}

func TestValidate_TimestampOverflowIsBadTimestamp(t *testing.T) {
	v := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.TimestampStr = "99999999999999999999" }))
	assert.Equal(t, ir.ReasonBadTimestamp, v.Reason)
}

func TestValidate_NameCountsRunes(t *testing.T) {
	// 64 two-byte runes is 128 bytes but still within the limit.
	v := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.Name = strings.Repeat("\u00e9", 64) }))
	assert.True(t, v.Accepted)

	v = Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.Name = strings.Repeat("\u00e9", 65) }))
	assert.Equal(t, ir.ReasonNameTooLong, v.Reason)

	v = Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.Name = "" }))
	assert.True(t, v.Accepted)
}

func TestValidate_NameCountsAstralRunesOnce(t *testing.T) {
	// U+1F600 is one rune but two UTF-16 units; the limit is in runes.
	v := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.Name = strings.Repeat("\U0001F600", 64) }))
	assert.True(t, v.Accepted)

	v = Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.Name = strings.Repeat("\U0001F600", 65) }))
	assert.Equal(t, ir.ReasonNameTooLong, v.Reason)
	assert.Equal(t, "name has 65 characters, limit 64", v.Detail)
}

func TestValidate_KeyMustBeHexNotJustLength(t *testing.T) {
	key := "02" + strings.Repeat("ab", 31) + "xy"
	require.Len(t, key, 66)

	v := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.PrimaryPubKeyHex = key }))
	assert.Equal(t, ir.ReasonBadKeyLength, v.Reason)

	upper := strings.ToUpper(testutil.PrimaryKeyHex)
	v = Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.PrimaryPubKeyHex = upper }))
	assert.True(t, v.Accepted)
}

func TestValidate_TimestampIsPlainInteger(t *testing.T) {
	for _, ts := range []string{"1700000000.0", " 1700000000", "1700000000\n", "1.7e9", ""} {
		t.Run(strconv.Quote(ts), func(t *testing.T) {
			v := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.TimestampStr = ts }))
			assert.Equal(t, ir.ReasonBadTimestamp, v.Reason)
		})
	}
}

func TestValidate_UHRPAccepted(t *testing.T) {
	v := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.PhotoURL = "uhrp:XUTabc" }))
	assert.True(t, v.Accepted)
}

func TestValidate_CustomRules(t *testing.T) {
	rules := DefaultRules()
	rules.MaxNameLength = 3
	rules.URLSchemes = []string{"ipfs:"}

	v := Validate(rules, withOutput(func(o *ir.Output) {
		o.Name = "Bob"
		o.PhotoURL = "ipfs://cid"
	}))
	assert.True(t, v.Accepted)

	v = Validate(rules, testutil.AliceAction())
	assert.Equal(t, ir.ReasonNameTooLong, v.Reason)
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	a := testutil.AliceAction()
	before := testutil.AliceAction()
	_ = Validate(DefaultRules(), a)
	assert.Equal(t, before, a)
}

func TestValidator_BindsRules(t *testing.T) {
	v := New(DefaultRules())
	assert.Equal(t, DefaultRules(), v.Rules())
	assert.True(t, v.Validate(testutil.AliceAction()).Accepted)
}

func TestVerdictErr(t *testing.T) {
	v := Validate(DefaultRules(), withOutput(func(o *ir.Output) { o.PhotoURL = "ftp://example.com/a.png" }))
	err := v.Err("tx1")
	require.Error(t, err)

	assert.True(t, IsRejection(err))
	assert.True(t, IsRejection(fmt.Errorf("wrapped: %w", err)))
	reason, ok := RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, ir.ReasonBadURLScheme, reason)
	assert.Contains(t, err.Error(), "tx1")
	assert.Contains(t, err.Error(), "BAD_URL_SCHEME")

	assert.False(t, IsRejection(fmt.Errorf("plain")))
	_, ok = RejectionReason(nil)
	assert.False(t, ok)
}

func TestRulesValidate(t *testing.T) {
	require.NoError(t, DefaultRules().Validate())

	bad := Rules{
		MinTimestamp: 10,
		MaxTimestamp: 5,
		URLSchemes:   []string{"https"},
	}
	err := bad.Validate()
	require.Error(t, err)
	for _, want := range []string{"namespace is required", "key_bytes", "min_timestamp", "max_name_length", `"https"`} {
		assert.Contains(t, err.Error(), want)
	}

	empty := DefaultRules()
	empty.URLSchemes = nil
	assert.ErrorContains(t, empty.Validate(), "url_schemes must not be empty")
}

func TestDefaultRulesAreIndependentCopies(t *testing.T) {
	r := DefaultRules()
	r.URLSchemes[0] = "gopher:"
	assert.Equal(t, "https:", DefaultRules().URLSchemes[0])
}

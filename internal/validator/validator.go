package validator

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/profilebus/internal/ir"
)

// Validate runs every check against action in order and returns the first
// failure, or an accepting verdict carrying the parsed timestamp.
func Validate(rules Rules, action ir.TransactionAction) Verdict {
	if action.ID == "" {
		return Reject(ir.ReasonMalformedInput, "transaction id is empty")
	}
	out, ok := action.ProfileOutput()
	if !ok {
		return Reject(ir.ReasonMalformedInput, "transaction has no output 0")
	}

	if out.NamespaceSelector != rules.Namespace {
		return Reject(ir.ReasonNamespaceMismatch, "namespace %q", out.NamespaceSelector)
	}

	if !action.SignedBy(out.UserID) {
		return Reject(ir.ReasonUnsignedByOwner, "user %q did not sign any input", out.UserID)
	}

	if !keyHasLength(out.PrimaryPubKeyHex, rules.KeyBytes) {
		return Reject(ir.ReasonBadKeyLength, "primary key is not %d hex-encoded bytes", rules.KeyBytes)
	}
	if !keyHasLength(out.PrivilegedPubKeyHex, rules.KeyBytes) {
		return Reject(ir.ReasonBadKeyLength, "privileged key is not %d hex-encoded bytes", rules.KeyBytes)
	}

	ts, err := strconv.ParseInt(out.TimestampStr, 10, 64)
	if err != nil {
		return Reject(ir.ReasonBadTimestamp, "timestamp %q is not a base-10 integer", out.TimestampStr)
	}
	if ts < rules.MinTimestamp || ts > rules.MaxTimestamp {
		return Reject(ir.ReasonTimestampOutOfRange, "timestamp %d outside [%d, %d]", ts, rules.MinTimestamp, rules.MaxTimestamp)
	}

	if n := utf8.RuneCountInString(out.Name); n > rules.MaxNameLength {
		return Reject(ir.ReasonNameTooLong, "name has %d characters, limit %d", n, rules.MaxNameLength)
	}

	if !hasAllowedScheme(out.PhotoURL, rules.URLSchemes) {
		return Reject(ir.ReasonBadURLScheme, "photo URL %q", out.PhotoURL)
	}

	return Accept(Normalized{Timestamp: ts})
}

// keyHasLength reports whether s is hex decoding to exactly n bytes.
// Odd-length or non-hex strings never match.
func keyHasLength(s string, n int) bool {
	if len(s) != 2*n {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func hasAllowedScheme(url string, schemes []string) bool {
	for _, s := range schemes {
		if strings.HasPrefix(url, s) {
			return true
		}
	}
	return false
}

// Validator binds a rule set so callers can pass validation around as a
// value.
type Validator struct {
	rules Rules
}

// New returns a Validator for rules.
func New(rules Rules) *Validator {
	return &Validator{rules: rules}
}

// Rules returns the bound rule set.
func (v *Validator) Rules() Rules {
	return v.rules
}

// Validate checks action against the bound rules.
func (v *Validator) Validate(action ir.TransactionAction) Verdict {
	return Validate(v.rules, action)
}

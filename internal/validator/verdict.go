package validator

import (
	"errors"
	"fmt"

	"github.com/roach88/profilebus/internal/ir"
)

// Normalized holds values parsed during validation so the projector does
// not parse them a second time.
type Normalized struct {
	Timestamp int64
}

// Verdict is the result of validating one action.
// Reason is ReasonNone exactly when Accepted is true.
type Verdict struct {
	Accepted   bool
	Reason     ir.ReasonCode
	Detail     string
	Normalized Normalized
}

// Accept builds an accepting verdict.
func Accept(n Normalized) Verdict {
	return Verdict{Accepted: true, Normalized: n}
}

// Reject builds a rejecting verdict.
func Reject(reason ir.ReasonCode, format string, args ...any) Verdict {
	return Verdict{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Err returns nil for an accepting verdict and a *RejectionError otherwise.
func (v Verdict) Err(txid string) error {
	if v.Accepted {
		return nil
	}
	return &RejectionError{TxID: txid, Reason: v.Reason, Detail: v.Detail}
}

// RejectionError surfaces a rejection to callers that asked for it.
type RejectionError struct {
	TxID   string
	Reason ir.ReasonCode
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rejected %s: %s", e.TxID, e.Reason)
	}
	return fmt.Sprintf("rejected %s: %s: %s", e.TxID, e.Reason, e.Detail)
}

// IsRejection reports whether err wraps a *RejectionError.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// RejectionReason extracts the reason code from err, if it is a rejection.
func RejectionReason(err error) (ir.ReasonCode, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return ir.ReasonNone, false
}

// Package validator decides whether a candidate transaction may become a
// profile record.
//
// Validation is a pure function of (Rules, TransactionAction). It performs no
// I/O, never logs and never mutates its input. Checks run in a fixed order and
// stop at the first failure, so a Verdict carries exactly one reason code.
package validator

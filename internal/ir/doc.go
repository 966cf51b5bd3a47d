// Package ir defines the data model shared by every profilebus package.
//
// This package contains types and pure helpers only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - TransactionAction is the strongly-typed view of one delivered
//     transaction, produced once at the feed boundary
//   - ProfileRecord is immutable once projected; there is no update path
//   - Record identity is the transaction id, never a generated key
//   - Content hashes use RFC 8785 canonical JSON so redelivery of the same
//     transaction can be told apart from a conflicting write
package ir

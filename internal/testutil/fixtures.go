package testutil

import (
	"strings"

	"github.com/roach88/profilebus/internal/ir"
	"github.com/roach88/profilebus/internal/protocol"
)

const (
	// AliceAddress is the signing address used by fixture actions.
	AliceAddress = "1AliceAddressXXXXXXXXXXXXXXXXXXXX"

	// AliceTxID is the transaction id of AliceAction.
	AliceTxID = "a1ce000000000000000000000000000000000000000000000000000000000001"

	// AliceTimestamp is the fixture profile timestamp.
	AliceTimestamp int64 = 1700000000
)

// PrimaryKeyHex and PrivilegedKeyHex are 33-byte compressed keys.
var (
	PrimaryKeyHex    = "02" + strings.Repeat("ab", 32)
	PrivilegedKeyHex = "03" + strings.Repeat("cd", 32)
)

// AliceAction returns a fully valid action under the default rules.
// Each call returns a fresh copy, so tests may mutate it freely.
func AliceAction() ir.TransactionAction {
	return ir.TransactionAction{
		ID: AliceTxID,
		Inputs: []ir.Input{
			{SigningAddress: "1SomeoneElseXXXXXXXXXXXXXXXXXXXXX"},
			{SigningAddress: AliceAddress},
		},
		Outputs: []ir.Output{{
			NamespaceSelector:   protocol.DefaultNamespace,
			UserID:              AliceAddress,
			PrimaryPubKeyHex:    PrimaryKeyHex,
			PrivilegedPubKeyHex: PrivilegedKeyHex,
			TimestampStr:        "1700000000",
			Name:                "Alice",
			PhotoURL:            "https://example.com/a.png",
		}},
	}
}

// ValidAction returns AliceAction under a different transaction id.
func ValidAction(txid string) ir.TransactionAction {
	a := AliceAction()
	a.ID = txid
	return a
}

// AliceRecord is the record AliceAction projects to.
func AliceRecord() ir.ProfileRecord {
	return ir.ProfileRecord{
		ID:                   AliceTxID,
		UserID:               AliceAddress,
		PrimarySigningPub:    PrimaryKeyHex,
		PrivilegedSigningPub: PrivilegedKeyHex,
		Timestamp:            AliceTimestamp,
		Name:                 "Alice",
		PhotoURL:             "https://example.com/a.png",
	}
}

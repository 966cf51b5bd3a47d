package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/profilebus/internal/ir"
)

// marshalRecord converts a record to canonical JSON TEXT plus its hash.
// The hash decides whether a second Create is a redelivery or a conflict.
func marshalRecord(r ir.ProfileRecord) (data, hash string, err error) {
	b, err := ir.MarshalCanonical(r.Object())
	if err != nil {
		return "", "", fmt.Errorf("marshal record: %w", err)
	}
	hash, err = ir.RecordHash(r)
	if err != nil {
		return "", "", fmt.Errorf("hash record: %w", err)
	}
	return string(b), hash, nil
}

// unmarshalRecord parses canonical JSON TEXT back into a record.
// Uses ir.IRObject.UnmarshalJSON so timestamps stay exact integers.
func unmarshalRecord(data string) (ir.ProfileRecord, error) {
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return ir.ProfileRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return ir.ProfileRecordFromObject(obj), nil
}

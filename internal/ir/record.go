package ir

// NewProfileRecord maps an accepted action onto the persisted record shape.
//
// The mapping is literal: every string field is copied unchanged from
// output 0 and timestamp is the already-parsed integer from validation.
// Callers must only pass actions that passed every validator check.
func NewProfileRecord(action TransactionAction, timestamp int64) ProfileRecord {
	out, _ := action.ProfileOutput()
	return ProfileRecord{
		ID:                   action.ID,
		UserID:               out.UserID,
		PrimarySigningPub:    out.PrimaryPubKeyHex,
		PrivilegedSigningPub: out.PrivilegedPubKeyHex,
		Timestamp:            timestamp,
		Name:                 out.Name,
		PhotoURL:             out.PhotoURL,
	}
}

// Object returns the record as an IRObject for canonical serialization.
func (r ProfileRecord) Object() IRObject {
	return IRObject{
		"id":                   IRString(r.ID),
		"userID":               IRString(r.UserID),
		"primarySigningPub":    IRString(r.PrimarySigningPub),
		"privilegedSigningPub": IRString(r.PrivilegedSigningPub),
		"timestamp":            IRInt(r.Timestamp),
		"name":                 IRString(r.Name),
		"photoURL":             IRString(r.PhotoURL),
	}
}

// ProfileRecordFromObject is the inverse of Object.
// Missing or mistyped keys leave the corresponding field zero.
func ProfileRecordFromObject(obj IRObject) ProfileRecord {
	str := func(key string) string {
		if s, ok := obj[key].(IRString); ok {
			return string(s)
		}
		return ""
	}
	var ts int64
	if n, ok := obj["timestamp"].(IRInt); ok {
		ts = int64(n)
	}
	return ProfileRecord{
		ID:                   str("id"),
		UserID:               str("userID"),
		PrimarySigningPub:    str("primarySigningPub"),
		PrivilegedSigningPub: str("privilegedSigningPub"),
		Timestamp:            ts,
		Name:                 str("name"),
		PhotoURL:             str("photoURL"),
	}
}

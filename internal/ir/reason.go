package ir

// ReasonCode identifies why an action was rejected.
type ReasonCode string

const (
	// ReasonNone is the zero value carried by accepted verdicts.
	ReasonNone ReasonCode = ""

	// ReasonMalformedInput means required fields were missing entirely.
	ReasonMalformedInput ReasonCode = "MALFORMED_INPUT"

	// ReasonNamespaceMismatch means output 0 does not carry the protocol namespace.
	ReasonNamespaceMismatch ReasonCode = "NAMESPACE_MISMATCH"

	// ReasonUnsignedByOwner means the claimed user did not sign any input.
	ReasonUnsignedByOwner ReasonCode = "UNSIGNED_BY_OWNER"

	// ReasonBadKeyLength means a public key is not exactly 33 bytes of hex.
	ReasonBadKeyLength ReasonCode = "BAD_KEY_LENGTH"

	// ReasonBadTimestamp means the timestamp is not a base-10 integer.
	ReasonBadTimestamp ReasonCode = "BAD_TIMESTAMP"

	// ReasonTimestampOutOfRange means the timestamp is outside [min, max].
	ReasonTimestampOutOfRange ReasonCode = "TIMESTAMP_OUT_OF_RANGE"

	// ReasonNameTooLong means the display name exceeds the configured length.
	ReasonNameTooLong ReasonCode = "NAME_TOO_LONG"

	// ReasonBadURLScheme means the photo URL uses a scheme outside the allow-list.
	ReasonBadURLScheme ReasonCode = "BAD_URL_SCHEME"
)

// ReasonCodes lists every rejection code in validator check order,
// with MALFORMED_INPUT first since shape is checked before any rule.
var ReasonCodes = []ReasonCode{
	ReasonMalformedInput,
	ReasonNamespaceMismatch,
	ReasonUnsignedByOwner,
	ReasonBadKeyLength,
	ReasonBadTimestamp,
	ReasonTimestampOutOfRange,
	ReasonNameTooLong,
	ReasonBadURLScheme,
}

// IsValid reports whether c is a known rejection code.
func (c ReasonCode) IsValid() bool {
	for _, known := range ReasonCodes {
		if c == known {
			return true
		}
	}
	return false
}

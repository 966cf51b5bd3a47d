package ir

// Collection is the state store collection profiles are projected into.
const Collection = "profiles"

// Input is one transaction input as delivered by the feed.
type Input struct {
	// SigningAddress is the address that authorized this input.
	// Empty when the feed could not attribute the input to an address.
	SigningAddress string `json:"signingAddress"`
}

// Output is one transaction output decoded into the protocol's field layout.
// Only the output at index 0 is interpreted by the validator.
type Output struct {
	NamespaceSelector   string `json:"namespaceSelector"`
	UserID              string `json:"userID"`
	PrimaryPubKeyHex    string `json:"primaryPubKeyHex"`
	PrivilegedPubKeyHex string `json:"privilegedPubKeyHex"`
	TimestampStr        string `json:"timestampStr"`
	Name                string `json:"name"`
	PhotoURL            string `json:"photoURL"`
}

// TransactionAction is a candidate transaction delivered by the feed.
// It is read-only input to the pipeline.
type TransactionAction struct {
	ID      string   `json:"id"`
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`

	// BlockHeight is the height the transaction was mined at.
	// Zero means unconfirmed or not reported by the feed.
	BlockHeight int64 `json:"blockHeight,omitempty"`
}

// ProfileOutput returns the output carrying the protocol fields.
// Returns false if the action has no outputs.
func (a TransactionAction) ProfileOutput() (Output, bool) {
	if len(a.Outputs) == 0 {
		return Output{}, false
	}
	return a.Outputs[0], true
}

// SignedBy reports whether any input was authorized by addr.
// An empty addr never matches.
func (a TransactionAction) SignedBy(addr string) bool {
	if addr == "" {
		return false
	}
	for _, in := range a.Inputs {
		if in.SigningAddress == addr {
			return true
		}
	}
	return false
}

// ProfileRecord is the persisted entity produced by a fully valid action.
type ProfileRecord struct {
	ID                   string `json:"id"`
	UserID               string `json:"userID"`
	PrimarySigningPub    string `json:"primarySigningPub"`
	PrivilegedSigningPub string `json:"privilegedSigningPub"`
	Timestamp            int64  `json:"timestamp"`
	Name                 string `json:"name"`
	PhotoURL             string `json:"photoURL"`
}

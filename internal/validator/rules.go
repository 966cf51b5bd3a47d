package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/profilebus/internal/protocol"
)

const (
	// DefaultKeyBytes is the length of a compressed secp256k1 public key.
	DefaultKeyBytes = 33

	// DefaultMinTimestamp is the genesis block time.
	DefaultMinTimestamp int64 = 1231006505

	// DefaultMaxTimestamp is 2100-01-01T00:00:00Z.
	DefaultMaxTimestamp int64 = 4102444800

	// DefaultMaxNameLength bounds display names, counted in runes.
	DefaultMaxNameLength = 64
)

// DefaultURLSchemes are the photo URL prefixes accepted by default.
var DefaultURLSchemes = []string{"https:", "uhrp:"}

// Rules parameterize validation. Construct with DefaultRules and override
// fields from configuration; there are no package-level knobs.
type Rules struct {
	Namespace     string   `json:"namespace"`
	KeyBytes      int      `json:"key_bytes"`
	MinTimestamp  int64    `json:"min_timestamp"`
	MaxTimestamp  int64    `json:"max_timestamp"`
	MaxNameLength int      `json:"max_name_length"`
	URLSchemes    []string `json:"url_schemes"`
}

// DefaultRules returns the protocol's production rule set.
func DefaultRules() Rules {
	return Rules{
		Namespace:     protocol.DefaultNamespace,
		KeyBytes:      DefaultKeyBytes,
		MinTimestamp:  DefaultMinTimestamp,
		MaxTimestamp:  DefaultMaxTimestamp,
		MaxNameLength: DefaultMaxNameLength,
		URLSchemes:    append([]string(nil), DefaultURLSchemes...),
	}
}

// Validate reports configuration mistakes that would make every action
// fail, or make the range check meaningless.
func (r Rules) Validate() error {
	var errs []error
	if r.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	if r.KeyBytes <= 0 {
		errs = append(errs, fmt.Errorf("key_bytes must be positive, got %d", r.KeyBytes))
	}
	if r.MinTimestamp > r.MaxTimestamp {
		errs = append(errs, fmt.Errorf("min_timestamp %d is after max_timestamp %d", r.MinTimestamp, r.MaxTimestamp))
	}
	if r.MaxNameLength <= 0 {
		errs = append(errs, fmt.Errorf("max_name_length must be positive, got %d", r.MaxNameLength))
	}
	if len(r.URLSchemes) == 0 {
		errs = append(errs, errors.New("url_schemes must not be empty"))
	}
	for i, s := range r.URLSchemes {
		if !strings.HasSuffix(s, ":") || len(s) < 2 {
			errs = append(errs, fmt.Errorf("url_schemes[%d]: %q must look like \"scheme:\"", i, s))
		}
	}
	return errors.Join(errs...)
}

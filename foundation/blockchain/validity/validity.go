// Package validity defines the outcome of validating a transaction before
// it is included in a block.
package validity

import (
	"errors"
	"fmt"
)

// Reason represents why a transaction is invalid.
type Reason uint8

// Set of reasons a transaction can be invalid.
const (
	Call Reason = iota + 1
	Payment
	Future
	Stale
	BadProof
	AncientBirthBlock
	Expired
	ExhaustsResources
	BadSigner
	BadMandatory
	MissingSignature
	BadVersion
	BadGenesis
	BadMetadataHash
)

var reasons = map[Reason]string{
	Call:              "Call",
	Payment:           "Payment",
	Future:            "Future",
	Stale:             "Stale",
	BadProof:          "BadProof",
	AncientBirthBlock: "AncientBirthBlock",
	Expired:           "Expired",
	ExhaustsResources: "ExhaustsResources",
	BadSigner:         "BadSigner",
	BadMandatory:      "BadMandatory",
	MissingSignature:  "MissingSignature",
	BadVersion:        "BadVersion",
	BadGenesis:        "BadGenesis",
	BadMetadataHash:   "BadMetadataHash",
}

// String implements the fmt.Stringer interface.
func (r Reason) String() string {
	if s, exists := reasons[r]; exists {
		return s
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// =============================================================================

// InvalidError is returned when a transaction is rejected. An invalid
// transaction is never included in a block and never charged.
type InvalidError struct {
	Reason Reason
	Err    error
}

// Invalid constructs an InvalidError with a formatted message.
func Invalid(reason Reason, format string, args ...any) *InvalidError {
	return &InvalidError{
		Reason: reason,
		Err:    fmt.Errorf(format, args...),
	}
}

// Error implements the error interface.
func (e *InvalidError) Error() string {
	if e.Err == nil {
		return "invalid transaction: " + e.Reason.String()
	}
	return fmt.Sprintf("invalid transaction: %s: %s", e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *InvalidError) Unwrap() error {
	return e.Err
}

// IsInvalid checks if an error of type InvalidError exists.
func IsInvalid(err error) bool {
	var ie *InvalidError
	return errors.As(err, &ie)
}

// ReasonOf returns the reason a transaction is invalid.
func ReasonOf(err error) (Reason, bool) {
	var ie *InvalidError
	if !errors.As(err, &ie) {
		return 0, false
	}
	return ie.Reason, true
}

// =============================================================================

// Valid represents the information a transaction pool needs to order and
// retain a transaction that passed validation.
type Valid struct {
	Priority  uint64   `json:"priority"`
	Requires  [][]byte `json:"requires"`
	Provides  [][]byte `json:"provides"`
	Longevity uint64   `json:"longevity"`
	Propagate bool     `json:"propagate"`
}

// Default returns the neutral validity all others are combined into.
func Default() Valid {
	return Valid{
		Longevity: ^uint64(0),
		Propagate: true,
	}
}

// Combine merges two validities. Priorities add, tags accumulate, the
// shortest longevity wins and propagation requires both to agree.
func (v Valid) Combine(o Valid) Valid {
	priority := v.Priority + o.Priority
	if priority < v.Priority {
		priority = ^uint64(0)
	}

	return Valid{
		Priority:  priority,
		Requires:  append(append([][]byte{}, v.Requires...), o.Requires...),
		Provides:  append(append([][]byte{}, v.Provides...), o.Provides...),
		Longevity: min(v.Longevity, o.Longevity),
		Propagate: v.Propagate && o.Propagate,
	}
}

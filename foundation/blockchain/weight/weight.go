// Package weight provides the two dimensional execution cost accounting used
// to bound the work done by a single transaction and by a whole block.
package weight

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned when consuming a cost would exceed a limit. The
// totals are left unchanged when this happens.
var ErrOverflow = errors.New("cost exceeds limit")

// Weight represents the cost of executing something. RefTime measures
// computation and ProofSize measures the storage that needs to be read to
// verify the execution.
type Weight struct {
	RefTime   uint64 `json:"ref_time"`
	ProofSize uint64 `json:"proof_size"`
}

// Zero represents no cost.
var Zero = Weight{}

// New constructs a weight value.
func New(refTime uint64, proofSize uint64) Weight {
	return Weight{RefTime: refTime, ProofSize: proofSize}
}

// Add returns the sum of both weights saturating at the maximum value.
func (w Weight) Add(o Weight) Weight {
	return Weight{
		RefTime:   saturatingAdd(w.RefTime, o.RefTime),
		ProofSize: saturatingAdd(w.ProofSize, o.ProofSize),
	}
}

// Sub returns the difference of both weights saturating at zero.
func (w Weight) Sub(o Weight) Weight {
	return Weight{
		RefTime:   saturatingSub(w.RefTime, o.RefTime),
		ProofSize: saturatingSub(w.ProofSize, o.ProofSize),
	}
}

// Min returns the per dimension minimum of both weights.
func (w Weight) Min(o Weight) Weight {
	return Weight{
		RefTime:   min(w.RefTime, o.RefTime),
		ProofSize: min(w.ProofSize, o.ProofSize),
	}
}

// AnyGt reports whether any dimension of w is greater than the same
// dimension of o.
func (w Weight) AnyGt(o Weight) bool {
	return w.RefTime > o.RefTime || w.ProofSize > o.ProofSize
}

// IsZero reports whether both dimensions are zero.
func (w Weight) IsZero() bool {
	return w == Zero
}

// String implements the fmt.Stringer interface for logging.
func (w Weight) String() string {
	return fmt.Sprintf("ref[%d]:proof[%d]", w.RefTime, w.ProofSize)
}

// =============================================================================

// Class represents the dispatch class of a call. Mandatory calls are the
// inherents a block must contain and are not subject to the normal limits.
type Class uint8

// Set of dispatch classes.
const (
	Normal Class = iota
	Mandatory
)

// String implements the fmt.Stringer interface for logging.
func (c Class) String() string {
	switch c {
	case Mandatory:
		return "mandatory"
	default:
		return "normal"
	}
}

// =============================================================================

func saturatingAdd(a uint64, b uint64) uint64 {
	if c := a + b; c >= a {
		return c
	}
	return ^uint64(0)
}

func saturatingSub(a uint64, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

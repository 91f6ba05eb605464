package weight

import "fmt"

// Limits represents the immutable cost limits of the runtime.
type Limits struct {
	MaxBlock           Weight `json:"max_block"`
	MaxExtrinsic       Weight `json:"max_extrinsic"`
	BaseExtrinsic      Weight `json:"base_extrinsic"`
	MaxBlockLength     uint64 `json:"max_block_length"`
	MaxExtrinsicLength uint64 `json:"max_extrinsic_length"`
}

// Validate checks the limits are internally consistent.
func (l Limits) Validate() error {
	if l.MaxExtrinsic.AnyGt(l.MaxBlock) {
		return fmt.Errorf("max extrinsic %s exceeds max block %s", l.MaxExtrinsic, l.MaxBlock)
	}

	if l.BaseExtrinsic.AnyGt(l.MaxExtrinsic) {
		return fmt.Errorf("base extrinsic %s exceeds max extrinsic %s", l.BaseExtrinsic, l.MaxExtrinsic)
	}

	if l.MaxExtrinsicLength > l.MaxBlockLength {
		return fmt.Errorf("max extrinsic length %d exceeds max block length %d", l.MaxExtrinsicLength, l.MaxBlockLength)
	}

	return nil
}

// =============================================================================

// Checkpoint captures the totals of a meter so they can be restored.
type Checkpoint struct {
	weight Weight
	length uint64
}

// Meter tracks the cost consumed by a block. Totals only ever grow within
// a block and are reset when a new block starts.
type Meter struct {
	limits Limits
	weight Weight
	length uint64
}

// NewMeter constructs a meter for the specified limits.
func NewMeter(limits Limits) *Meter {
	return &Meter{limits: limits}
}

// Limits returns the limits the meter enforces.
func (m *Meter) Limits() Limits {
	return m.limits
}

// Reset clears the totals for a new block.
func (m *Meter) Reset() {
	m.weight = Zero
	m.length = 0
}

// Consumed returns the weight consumed so far.
func (m *Meter) Consumed() Weight {
	return m.weight
}

// Length returns the encoded length consumed so far.
func (m *Meter) Length() uint64 {
	return m.length
}

// Remaining returns the weight left before the block limit is reached.
func (m *Meter) Remaining() Weight {
	return m.limits.MaxBlock.Sub(m.weight)
}

// TryConsume atomically checks and adds the cost of an item to the block
// totals. Normal items are bounded by the block limits. Mandatory items
// are exempt from what the block already consumed but must fit in an empty
// block on their own and can't overflow the counters. On error the totals
// are unchanged.
func (m *Meter) TryConsume(w Weight, length uint64, class Class) error {
	nw := m.weight.Add(w)
	nl := saturatingAdd(m.length, length)

	switch class {
	case Mandatory:
		if w.AnyGt(m.limits.MaxBlock) {
			return fmt.Errorf("mandatory weight %s > %s: %w", w, m.limits.MaxBlock, ErrOverflow)
		}
		if length > m.limits.MaxBlockLength {
			return fmt.Errorf("mandatory length %d > %d: %w", length, m.limits.MaxBlockLength, ErrOverflow)
		}
		if nw.RefTime == ^uint64(0) || nw.ProofSize == ^uint64(0) || nl == ^uint64(0) {
			return fmt.Errorf("mandatory weight %s: %w", w, ErrOverflow)
		}

	default:
		if nw.AnyGt(m.limits.MaxBlock) {
			return fmt.Errorf("block weight %s + %s > %s: %w", m.weight, w, m.limits.MaxBlock, ErrOverflow)
		}
		if nl > m.limits.MaxBlockLength {
			return fmt.Errorf("block length %d + %d > %d: %w", m.length, length, m.limits.MaxBlockLength, ErrOverflow)
		}
	}

	m.weight = nw
	m.length = nl

	return nil
}

// Checkpoint captures the current totals.
func (m *Meter) Checkpoint() Checkpoint {
	return Checkpoint{weight: m.weight, length: m.length}
}

// Restore sets the totals back to a previous checkpoint. This is only used
// to undo a transaction that was rejected before it became part of the
// block.
func (m *Meter) Restore(cp Checkpoint) {
	m.weight = cp.weight
	m.length = cp.length
}

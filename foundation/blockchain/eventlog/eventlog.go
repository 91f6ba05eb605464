// Package eventlog maintains the ordered log of events and dispatch outcomes
// produced while executing a single block.
package eventlog

import (
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// PhaseKind represents the part of block execution that emitted an event.
type PhaseKind uint8

// Set of execution phases.
const (
	Initialization PhaseKind = iota
	ApplyExtrinsic
	Finalization
)

// Phase identifies when an event was emitted. Index is the position of the
// extrinsic in the block when the kind is ApplyExtrinsic.
type Phase struct {
	Kind  PhaseKind `json:"kind"`
	Index uint32    `json:"index"`
}

// String implements the fmt.Stringer interface.
func (p Phase) String() string {
	switch p.Kind {
	case Initialization:
		return "initialization"
	case Finalization:
		return "finalization"
	default:
		return fmt.Sprintf("extrinsic[%d]", p.Index)
	}
}

// Record represents a single event emitted by a module.
type Record struct {
	Block      uint64 `json:"block"`
	Index      uint32 `json:"index"`
	Phase      Phase  `json:"phase"`
	Module     uint8  `json:"module"`
	ModuleName string `json:"module_name"`
	Name       string `json:"name"`
	Data       any    `json:"data"`
}

// String implements the fmt.Stringer interface for logging.
func (r Record) String() string {
	return fmt.Sprintf("blk[%d]:%s:%s.%s", r.Block, r.Phase, r.ModuleName, r.Name)
}

// Outcome represents the result of dispatching an included extrinsic.
type Outcome struct {
	Index  uint32        `json:"index"`
	Ok     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Weight weight.Weight `json:"weight"`
	Fee    uint64        `json:"fee"`
}

// Mark captures the size of the log so later entries can be dropped.
type Mark struct {
	records  int
	outcomes int
}

// =============================================================================

// Log is the per block, append only log of events. It is cleared when the
// next block is initialized.
type Log struct {
	block    uint64
	phase    Phase
	records  []Record
	outcomes []Outcome
}

// New constructs an empty log.
func New() *Log {
	return &Log{}
}

// Reset clears the log for the specified block.
func (l *Log) Reset(block uint64) {
	l.block = block
	l.phase = Phase{Kind: Initialization}
	l.records = nil
	l.outcomes = nil
}

// Block returns the number of the block the log belongs to.
func (l *Log) Block() uint64 {
	return l.block
}

// SetPhase sets the phase recorded with subsequent events.
func (l *Log) SetPhase(phase Phase) {
	l.phase = phase
}

// Phase returns the current phase.
func (l *Log) Phase() Phase {
	return l.phase
}

// Emit appends an event to the log.
func (l *Log) Emit(module uint8, moduleName string, name string, data any) {
	l.records = append(l.records, Record{
		Block:      l.block,
		Index:      uint32(len(l.records)),
		Phase:      l.phase,
		Module:     module,
		ModuleName: moduleName,
		Name:       name,
		Data:       data,
	})
}

// Outcome appends the dispatch outcome of an extrinsic.
func (l *Log) Outcome(o Outcome) {
	l.outcomes = append(l.outcomes, o)
}

// Mark captures the current size of the log.
func (l *Log) Mark() Mark {
	return Mark{records: len(l.records), outcomes: len(l.outcomes)}
}

// Truncate drops every entry appended after the mark.
func (l *Log) Truncate(m Mark) {
	if m.records < len(l.records) {
		l.records = l.records[:m.records]
	}
	if m.outcomes < len(l.outcomes) {
		l.outcomes = l.outcomes[:m.outcomes]
	}
}

// Len returns the number of events in the log.
func (l *Log) Len() int {
	return len(l.records)
}

// Records returns a copy of the events in emission order.
func (l *Log) Records() []Record {
	return append([]Record(nil), l.records...)
}

// ByModule returns the events emitted by the specified module in emission
// order.
func (l *Log) ByModule(module uint8) []Record {
	var records []Record
	for _, r := range l.records {
		if r.Module == module {
			records = append(records, r)
		}
	}

	return records
}

// Outcomes returns a copy of the dispatch outcomes in extrinsic order.
func (l *Log) Outcomes() []Outcome {
	return append([]Outcome(nil), l.outcomes...)
}

// Package payment implements the module that prices transactions. Fees are
// made of a base fee, a fee per encoded byte and a fee for the declared
// weight scaled by a stored multiplier, plus an optional tip.
package payment

import (
	"math/bits"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// Name is the registered name of the module.
const Name = "Payment"

// MultiplierOne is the multiplier value that leaves the weight fee
// unchanged. Multipliers are expressed in parts per million.
const MultiplierOne = 1_000_000

// EventTransactionFeePaid is emitted once the final fee is settled.
const EventTransactionFeePaid = "TransactionFeePaid"

var keyNextFeeMultiplier = []byte("NextFeeMultiplier")

// Charger represents the behavior the fee extension needs to price a
// transaction and record the payment.
type Charger interface {
	ComputeFee(env *module.Env, length uint64, info module.DispatchInfo, tip uint64) uint64
	ComputeActualFee(env *module.Env, length uint64, info module.DispatchInfo, post module.PostInfo, tip uint64) uint64
	NoteFeePaid(env *module.Env, who database.AccountID, fee uint64, tip uint64)
}

// Config represents the fee schedule.
type Config struct {
	BaseFee    uint64 `json:"base_fee"`    // Charged once per transaction.
	ByteFee    uint64 `json:"byte_fee"`    // Charged per encoded byte.
	WeightFee  uint64 `json:"weight_fee"`  // Charged per WeightUnit of ref time.
	WeightUnit uint64 `json:"weight_unit"` // Ref time priced at WeightFee.
	Multiplier uint64 `json:"multiplier"`  // Genesis fee multiplier in parts per million.
}

// InclusionFee represents the part of the fee paid for including the
// transaction in a block.
type InclusionFee struct {
	BaseFee           uint64 `json:"base_fee"`
	LenFee            uint64 `json:"len_fee"`
	AdjustedWeightFee uint64 `json:"adjusted_weight_fee"`
}

// FeeDetails represents the breakdown of a fee. A transaction that doesn't
// pay fees has no inclusion fee.
type FeeDetails struct {
	InclusionFee *InclusionFee `json:"inclusion_fee"`
	Tip          uint64        `json:"tip"`
}

// Final returns the total fee.
func (fd FeeDetails) Final() uint64 {
	if fd.InclusionFee == nil {
		return fd.Tip
	}

	total := fd.InclusionFee.BaseFee
	total = saturatingAdd(total, fd.InclusionFee.LenFee)
	total = saturatingAdd(total, fd.InclusionFee.AdjustedWeightFee)

	return saturatingAdd(total, fd.Tip)
}

// FeePaidEvent is the data of the TransactionFeePaid event.
type FeePaidEvent struct {
	Who       database.AccountID `json:"who"`
	ActualFee uint64             `json:"actual_fee"`
	Tip       uint64             `json:"tip"`
}

// =============================================================================

// Payment is the module.
type Payment struct {
	cfg Config
}

// New constructs the module.
func New(cfg Config) *Payment {
	if cfg.WeightUnit == 0 {
		cfg.WeightUnit = 1
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = MultiplierOne
	}

	return &Payment{cfg: cfg}
}

// Name implements the module.Module interface.
func (p *Payment) Name() string {
	return Name
}

// Prefix implements the module.Module interface.
func (p *Payment) Prefix() []byte {
	return []byte("Payment/")
}

// Calls implements the module.Module interface. The module has no calls.
func (p *Payment) Calls() []module.CallMeta {
	return nil
}

// Events implements the module.Module interface.
func (p *Payment) Events() []string {
	return []string{EventTransactionFeePaid}
}

// DecodeCall implements the module.Module interface.
func (p *Payment) DecodeCall(fn uint8, args []byte) (module.Call, error) {
	return nil, module.ErrUnknownFunction
}

// Dispatch implements the module.Module interface.
func (p *Payment) Dispatch(ctx *module.Context, origin module.Origin, call module.Call) (module.PostInfo, error) {
	return module.PostInfo{}, module.ErrUnknownFunction
}

// Genesis writes the initial fee multiplier.
func (p *Payment) Genesis(env *module.Env) {
	storage.PutRLP(env.ContextOf(p).Store, keyNextFeeMultiplier, p.cfg.Multiplier)
}

// =============================================================================

// NextFeeMultiplier returns the multiplier applied to weight fees.
func (p *Payment) NextFeeMultiplier(env *module.Env) uint64 {
	m, found := storage.GetRLP[uint64](env.ContextOf(p).Store, keyNextFeeMultiplier)
	if !found {
		return p.cfg.Multiplier
	}
	return m
}

// FeeDetails returns the breakdown of the fee for a transaction of the
// specified encoded length and dispatch info.
func (p *Payment) FeeDetails(env *module.Env, length uint64, info module.DispatchInfo, tip uint64) FeeDetails {
	if info.Pays == module.PaysNo {
		return FeeDetails{Tip: tip}
	}

	inclusion := InclusionFee{
		BaseFee:           p.cfg.BaseFee,
		LenFee:            mulDiv(length, p.cfg.ByteFee, 1),
		AdjustedWeightFee: mulDiv(p.weightToFee(info.Weight), p.NextFeeMultiplier(env), MultiplierOne),
	}

	return FeeDetails{InclusionFee: &inclusion, Tip: tip}
}

// ComputeFee implements the Charger interface.
func (p *Payment) ComputeFee(env *module.Env, length uint64, info module.DispatchInfo, tip uint64) uint64 {
	return p.FeeDetails(env, length, info, tip).Final()
}

// ComputeActualFee implements the Charger interface. It prices the weight
// the call reported using after it executed.
func (p *Payment) ComputeActualFee(env *module.Env, length uint64, info module.DispatchInfo, post module.PostInfo, tip uint64) uint64 {
	actual := module.DispatchInfo{
		Weight: post.Actual(info),
		Class:  info.Class,
		Pays:   post.PaysFee(info),
	}

	return p.ComputeFee(env, length, actual, tip)
}

// NoteFeePaid implements the Charger interface.
func (p *Payment) NoteFeePaid(env *module.Env, who database.AccountID, fee uint64, tip uint64) {
	env.ContextOf(p).Emit(EventTransactionFeePaid, FeePaidEvent{Who: who, ActualFee: fee, Tip: tip})
}

// weightToFee converts ref time into a fee.
func (p *Payment) weightToFee(w weight.Weight) uint64 {
	return mulDiv(w.RefTime, p.cfg.WeightFee, p.cfg.WeightUnit)
}

// =============================================================================

// mulDiv returns a*b/c saturating at the maximum value.
func mulDiv(a uint64, b uint64, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return ^uint64(0)
	}

	q, _ := bits.Div64(hi, lo, c)
	return q
}

func saturatingAdd(a uint64, b uint64) uint64 {
	if c := a + b; c >= a {
		return c
	}
	return ^uint64(0)
}

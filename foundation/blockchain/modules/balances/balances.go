// Package balances implements the module that owns the free balance of
// every account and the total issuance.
package balances

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// Name is the registered name of the module.
const Name = "Balances"

// Set of error variables for the module.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOverflow            = errors.New("balance overflow")
)

// Set of storage keys under the module prefix.
var (
	keyFree          = []byte("Free/")
	keyTotalIssuance = []byte("TotalIssuance")
)

// Set of event names.
const (
	EventEndowed    = "Endowed"
	EventTransfer   = "Transfer"
	EventBalanceSet = "BalanceSet"
	EventWithdraw   = "Withdraw"
	EventDeposit    = "Deposit"
)

// Currency represents the behavior other components need to move funds.
type Currency interface {
	FreeBalance(env *module.Env, who database.AccountID) uint64
	Withdraw(env *module.Env, who database.AccountID, amount uint64) error
	Deposit(env *module.Env, who database.AccountID, amount uint64) error
}

// Balances is the module.
type Balances struct{}

// New constructs the module.
func New() *Balances {
	return &Balances{}
}

// Name implements the module.Module interface.
func (b *Balances) Name() string {
	return Name
}

// Prefix implements the module.Module interface.
func (b *Balances) Prefix() []byte {
	return []byte("Balances/")
}

// Events implements the module.Module interface.
func (b *Balances) Events() []string {
	return []string{EventEndowed, EventTransfer, EventBalanceSet, EventWithdraw, EventDeposit}
}

// =============================================================================

// Event data for the module.
type (
	EndowedEvent struct {
		Account database.AccountID `json:"account"`
		Free    uint64             `json:"free"`
	}

	TransferEvent struct {
		From   database.AccountID `json:"from"`
		To     database.AccountID `json:"to"`
		Amount uint64             `json:"amount"`
	}

	BalanceSetEvent struct {
		Who  database.AccountID `json:"who"`
		Free uint64             `json:"free"`
	}

	AmountEvent struct {
		Who    database.AccountID `json:"who"`
		Amount uint64             `json:"amount"`
	}
)

// FreeBalance returns the free balance of the account.
func (b *Balances) FreeBalance(env *module.Env, who database.AccountID) uint64 {
	free, _ := storage.GetRLP[uint64](env.ContextOf(b).Store, freeKey(who))
	return free
}

// TotalIssuance returns the sum of every balance.
func (b *Balances) TotalIssuance(env *module.Env) uint64 {
	total, _ := storage.GetRLP[uint64](env.ContextOf(b).Store, keyTotalIssuance)
	return total
}

// Withdraw removes funds from the account and from the total issuance.
func (b *Balances) Withdraw(env *module.Env, who database.AccountID, amount uint64) error {
	ctx := env.ContextOf(b)

	free := b.FreeBalance(env, who)
	if free < amount {
		return fmt.Errorf("withdraw %d from %s with %d: %w", amount, who, free, ErrInsufficientBalance)
	}

	b.setFree(ctx, who, free-amount)
	b.setIssuance(ctx, b.TotalIssuance(env)-amount)

	ctx.Emit(EventWithdraw, AmountEvent{Who: who, Amount: amount})

	return nil
}

// Deposit adds funds to the account and to the total issuance. An account
// receiving funds for the first time is endowed.
func (b *Balances) Deposit(env *module.Env, who database.AccountID, amount uint64) error {
	ctx := env.ContextOf(b)

	free, exists := storage.GetRLP[uint64](ctx.Store, freeKey(who))
	if free+amount < free {
		return fmt.Errorf("deposit %d to %s: %w", amount, who, ErrOverflow)
	}

	total := b.TotalIssuance(env)
	if total+amount < total {
		return fmt.Errorf("deposit %d: issuance: %w", amount, ErrOverflow)
	}

	b.setFree(ctx, who, free+amount)
	b.setIssuance(ctx, total+amount)

	if !exists {
		ctx.Emit(EventEndowed, EndowedEvent{Account: who, Free: free + amount})
	}
	ctx.Emit(EventDeposit, AmountEvent{Who: who, Amount: amount})

	return nil
}

// transfer moves funds between two accounts without changing the issuance.
func (b *Balances) transfer(ctx *module.Context, from database.AccountID, to database.AccountID, amount uint64) error {
	fromFree, _ := storage.GetRLP[uint64](ctx.Store, freeKey(from))
	if fromFree < amount {
		return fmt.Errorf("transfer %d from %s with %d: %w", amount, from, fromFree, ErrInsufficientBalance)
	}

	if from == to {
		ctx.Emit(EventTransfer, TransferEvent{From: from, To: to, Amount: amount})
		return nil
	}

	toFree, exists := storage.GetRLP[uint64](ctx.Store, freeKey(to))
	if toFree+amount < toFree {
		return fmt.Errorf("transfer %d to %s: %w", amount, to, ErrOverflow)
	}

	b.setFree(ctx, from, fromFree-amount)
	b.setFree(ctx, to, toFree+amount)

	if !exists {
		ctx.Emit(EventEndowed, EndowedEvent{Account: to, Free: toFree + amount})
	}
	ctx.Emit(EventTransfer, TransferEvent{From: from, To: to, Amount: amount})

	return nil
}

// =============================================================================

// Genesis writes the initial balances and the total issuance.
func (b *Balances) Genesis(env *module.Env, balances map[database.AccountID]uint64) error {
	ctx := env.ContextOf(b)

	var total uint64
	for who, free := range balances {
		if total+free < total {
			return fmt.Errorf("genesis issuance: %w", ErrOverflow)
		}
		total += free
		b.setFree(ctx, who, free)
	}

	b.setIssuance(ctx, total)

	return nil
}

func (b *Balances) setFree(ctx *module.Context, who database.AccountID, free uint64) {
	storage.PutRLP(ctx.Store, freeKey(who), free)
}

func (b *Balances) setIssuance(ctx *module.Context, total uint64) {
	storage.PutRLP(ctx.Store, keyTotalIssuance, total)
}

func freeKey(who database.AccountID) []byte {
	return storage.Key(keyFree, who.Bytes())
}

// =============================================================================

// Set of call indexes.
const (
	CallTransfer uint8 = iota
	CallForceSetBalance
	CallForceTransfer
)

var calls = []module.CallMeta{
	{Index: CallTransfer, Name: "transfer", Origin: module.Signed, Weight: weight.New(50_000_000, 3_593)},
	{Index: CallForceSetBalance, Name: "force_set_balance", Origin: module.Root, Weight: weight.New(20_000_000, 3_593)},
	{Index: CallForceTransfer, Name: "force_transfer", Origin: module.Root, Weight: weight.New(52_000_000, 6_196)},
}

// Transfer moves value from the signer to the destination.
type Transfer struct {
	Dest  database.AccountID
	Value uint64
}

func (Transfer) Function() uint8           { return CallTransfer }
func (Transfer) Info() module.DispatchInfo { return calls[CallTransfer].Info() }
func (Transfer) Origin() module.Kind       { return module.Signed }
func (c Transfer) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// ForceSetBalance sets the free balance of an account.
type ForceSetBalance struct {
	Who  database.AccountID
	Free uint64
}

func (ForceSetBalance) Function() uint8           { return CallForceSetBalance }
func (ForceSetBalance) Info() module.DispatchInfo { return calls[CallForceSetBalance].Info() }
func (ForceSetBalance) Origin() module.Kind       { return module.Root }
func (c ForceSetBalance) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// ForceTransfer moves value between any two accounts.
type ForceTransfer struct {
	Source database.AccountID
	Dest   database.AccountID
	Value  uint64
}

func (ForceTransfer) Function() uint8           { return CallForceTransfer }
func (ForceTransfer) Info() module.DispatchInfo { return calls[CallForceTransfer].Info() }
func (ForceTransfer) Origin() module.Kind       { return module.Root }
func (c ForceTransfer) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// Calls implements the module.Module interface.
func (b *Balances) Calls() []module.CallMeta {
	return calls
}

// DecodeCall implements the module.Module interface.
func (b *Balances) DecodeCall(fn uint8, args []byte) (module.Call, error) {
	switch fn {
	case CallTransfer:
		return module.DecodeArgs[Transfer](args)
	case CallForceSetBalance:
		return module.DecodeArgs[ForceSetBalance](args)
	case CallForceTransfer:
		return module.DecodeArgs[ForceTransfer](args)
	}

	return nil, module.ErrUnknownFunction
}

// Dispatch implements the module.Module interface.
func (b *Balances) Dispatch(ctx *module.Context, origin module.Origin, call module.Call) (module.PostInfo, error) {
	switch c := call.(type) {
	case Transfer:
		return module.PostInfo{}, b.transfer(ctx, origin.Who, c.Dest, c.Value)

	case ForceTransfer:
		return module.PostInfo{}, b.transfer(ctx, c.Source, c.Dest, c.Value)

	case ForceSetBalance:
		env := ctx.Env()

		old, exists := storage.GetRLP[uint64](ctx.Store, freeKey(c.Who))
		total := b.TotalIssuance(env) - old
		if total+c.Free < total {
			return module.PostInfo{}, fmt.Errorf("set balance %d: issuance: %w", c.Free, ErrOverflow)
		}

		b.setFree(ctx, c.Who, c.Free)
		b.setIssuance(ctx, total+c.Free)

		if !exists {
			ctx.Emit(EventEndowed, EndowedEvent{Account: c.Who, Free: c.Free})
		}
		ctx.Emit(EventBalanceSet, BalanceSetEvent{Who: c.Who, Free: c.Free})

		return module.PostInfo{}, nil
	}

	return module.PostInfo{}, module.ErrUnknownFunction
}

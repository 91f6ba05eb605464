// Package system implements the module that owns per account nonces and
// block bookkeeping such as the recent block hashes.
package system

import (
	"encoding/binary"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Name is the registered name of the module.
const Name = "System"

// BlockHashCount is the default number of recent block hashes kept.
const BlockHashCount = 2400

// Set of storage keys under the module prefix.
var (
	keyAccount    = []byte("Account/")
	keyNumber     = []byte("Number")
	keyParentHash = []byte("ParentHash")
	keyAuthor     = []byte("Author")
	keyBlockHash  = []byte("BlockHash/")
)

// Set of event names.
const (
	EventExtrinsicSuccess = "ExtrinsicSuccess"
	EventExtrinsicFailed  = "ExtrinsicFailed"
	EventRemarked         = "Remarked"
)

// Nonces represents the behavior other components need to manage nonces.
type Nonces interface {
	Nonce(env *module.Env, who database.AccountID) uint64
	IncNonce(env *module.Env, who database.AccountID)
}

// BlockHashes represents the behavior other components need to look up
// recent block hashes.
type BlockHashes interface {
	BlockHash(env *module.Env, number uint64) (common.Hash, bool)
}

// Config represents the configuration of the module.
type Config struct {
	BlockHashCount uint64
}

// AccountInfo represents what the module stores per account.
type AccountInfo struct {
	Nonce uint64
}

// System is the module.
type System struct {
	blockHashCount uint64
}

// New constructs the module.
func New(cfg Config) *System {
	if cfg.BlockHashCount == 0 {
		cfg.BlockHashCount = BlockHashCount
	}

	return &System{
		blockHashCount: cfg.BlockHashCount,
	}
}

// Name implements the module.Module interface.
func (s *System) Name() string {
	return Name
}

// Prefix implements the module.Module interface.
func (s *System) Prefix() []byte {
	return []byte("System/")
}

// Events implements the module.Module interface.
func (s *System) Events() []string {
	return []string{EventExtrinsicSuccess, EventExtrinsicFailed, EventRemarked}
}

// =============================================================================

// Nonce returns the current nonce of the account.
func (s *System) Nonce(env *module.Env, who database.AccountID) uint64 {
	info, _ := storage.GetRLP[AccountInfo](env.ContextOf(s).Store, accountKey(who))
	return info.Nonce
}

// IncNonce increments the nonce of the account by one.
func (s *System) IncNonce(env *module.Env, who database.AccountID) {
	kv := env.ContextOf(s).Store

	info, _ := storage.GetRLP[AccountInfo](kv, accountKey(who))
	info.Nonce++

	storage.PutRLP(kv, accountKey(who), info)
}

// BlockHash returns the hash of a recent block.
func (s *System) BlockHash(env *module.Env, number uint64) (common.Hash, bool) {
	return storage.GetRLP[common.Hash](env.ContextOf(s).Store, blockHashKey(number))
}

// Number returns the number of the block being executed, or the last
// finalized block when read from committed state.
func (s *System) Number(env *module.Env) uint64 {
	n, _ := storage.GetRLP[uint64](env.ContextOf(s).Store, keyNumber)
	return n
}

// ParentHash returns the parent hash recorded for the current block.
func (s *System) ParentHash(env *module.Env) common.Hash {
	h, _ := storage.GetRLP[common.Hash](env.ContextOf(s).Store, keyParentHash)
	return h
}

// NoteBlock records the bookkeeping for a new block. The parent's hash is
// added to the recent block hashes and the oldest entry beyond the window
// is pruned.
func (s *System) NoteBlock(env *module.Env, number uint64, parentHash common.Hash, author *database.AccountID) {
	kv := env.ContextOf(s).Store

	storage.PutRLP(kv, keyNumber, number)
	storage.PutRLP(kv, keyParentHash, parentHash)

	switch author {
	case nil:
		kv.Remove(keyAuthor)
	default:
		storage.PutRLP(kv, keyAuthor, *author)
	}

	if number == 0 {
		return
	}

	storage.PutRLP(kv, blockHashKey(number-1), parentHash)

	if number > s.blockHashCount {
		kv.Remove(blockHashKey(number - 1 - s.blockHashCount))
	}
}

// =============================================================================

// SuccessEvent is the data of the ExtrinsicSuccess event.
type SuccessEvent struct {
	Info module.DispatchInfo `json:"info"`
}

// FailedEvent is the data of the ExtrinsicFailed event.
type FailedEvent struct {
	Module string              `json:"module"`
	Error  string              `json:"error"`
	Info   module.DispatchInfo `json:"info"`
}

// NoteSuccess records the success of the current extrinsic.
func (s *System) NoteSuccess(env *module.Env, info module.DispatchInfo) {
	env.ContextOf(s).Emit(EventExtrinsicSuccess, SuccessEvent{Info: info})
}

// NoteFailure records the failure of the current extrinsic.
func (s *System) NoteFailure(env *module.Env, info module.DispatchInfo, moduleName string, err error) {
	env.ContextOf(s).Emit(EventExtrinsicFailed, FailedEvent{
		Module: moduleName,
		Error:  err.Error(),
		Info:   info,
	})
}

// =============================================================================

// Set of call indexes.
const (
	CallRemark uint8 = iota
	CallRemarkWithEvent
)

var calls = []module.CallMeta{
	{Index: CallRemark, Name: "remark", Origin: module.Signed, Weight: weight.New(2_000_000, 0)},
	{Index: CallRemarkWithEvent, Name: "remark_with_event", Origin: module.Signed, Weight: weight.New(8_000_000, 0)},
}

// Remark represents a call that stores nothing.
type Remark struct {
	Remark []byte
}

// Function implements the module.Call interface.
func (Remark) Function() uint8 { return CallRemark }

// Info implements the module.Call interface.
func (Remark) Info() module.DispatchInfo { return calls[CallRemark].Info() }

// Origin implements the module.Call interface.
func (Remark) Origin() module.Kind { return module.Signed }

// Encode implements the module.Call interface.
func (c Remark) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// RemarkWithEvent represents a call that emits the hash of the remark.
type RemarkWithEvent struct {
	Remark []byte
}

// Function implements the module.Call interface.
func (RemarkWithEvent) Function() uint8 { return CallRemarkWithEvent }

// Info implements the module.Call interface.
func (RemarkWithEvent) Info() module.DispatchInfo { return calls[CallRemarkWithEvent].Info() }

// Origin implements the module.Call interface.
func (RemarkWithEvent) Origin() module.Kind { return module.Signed }

// Encode implements the module.Call interface.
func (c RemarkWithEvent) Encode() ([]byte, error) { return module.EncodeArgs(c) }

// RemarkedEvent is the data of the Remarked event.
type RemarkedEvent struct {
	Sender database.AccountID `json:"sender"`
	Hash   common.Hash        `json:"hash"`
}

// Calls implements the module.Module interface.
func (s *System) Calls() []module.CallMeta {
	return calls
}

// DecodeCall implements the module.Module interface.
func (s *System) DecodeCall(fn uint8, args []byte) (module.Call, error) {
	switch fn {
	case CallRemark:
		return module.DecodeArgs[Remark](args)
	case CallRemarkWithEvent:
		return module.DecodeArgs[RemarkWithEvent](args)
	}

	return nil, module.ErrUnknownFunction
}

// Dispatch implements the module.Module interface.
func (s *System) Dispatch(ctx *module.Context, origin module.Origin, call module.Call) (module.PostInfo, error) {
	switch c := call.(type) {
	case Remark:
		return module.PostInfo{}, nil

	case RemarkWithEvent:
		ctx.Emit(EventRemarked, RemarkedEvent{
			Sender: origin.Who,
			Hash:   crypto.Keccak256Hash(c.Remark),
		})
		return module.PostInfo{}, nil
	}

	return module.PostInfo{}, module.ErrUnknownFunction
}

// =============================================================================

func accountKey(who database.AccountID) []byte {
	return storage.Key(keyAccount, who.Bytes())
}

func blockHashKey(number uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), keyBlockHash...), number)
}

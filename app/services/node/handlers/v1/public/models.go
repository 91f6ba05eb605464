package public

import (
	"fmt"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
	"github.com/ardanlabs/statecore/foundation/nameservice"
	"github.com/ardanlabs/statecore/foundation/validate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type info struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Free    uint64             `json:"free"`
	Nonce   uint64             `json:"nonce"`
}

type actInfo struct {
	LatestBlock common.Hash `json:"latest_block"`
	Uncommitted int         `json:"uncommitted"`
	Accounts    []info      `json:"accounts"`
}

type genesisInfo struct {
	Hash         common.Hash     `json:"hash"`
	Header       database.Header `json:"header"`
	SpecVersion  uint32          `json:"spec_version"`
	TxVersion    uint32          `json:"tx_version"`
	MetadataHash common.Hash     `json:"metadata_hash"`
}

type tx struct {
	Hash       common.Hash         `json:"hash"`
	Signer     *database.AccountID `json:"signer,omitempty"`
	SignerName string              `json:"signer_name,omitempty"`
	Module     string              `json:"module"`
	Function   string              `json:"function"`
	Args       hexutil.Bytes       `json:"args"`
}

type block struct {
	Hash           common.Hash `json:"hash"`
	ParentHash     common.Hash `json:"parent_hash"`
	Number         uint64      `json:"number"`
	StateRoot      common.Hash `json:"state_root"`
	ExtrinsicsRoot common.Hash `json:"extrinsics_root"`
	Author         string      `json:"author,omitempty"`
	Transactions   []tx        `json:"txs"`
}

type lastEvents struct {
	Block    uint64             `json:"block"`
	Events   []eventlog.Record  `json:"events"`
	Outcomes []eventlog.Outcome `json:"outcomes"`
}

type submitted struct {
	Status   string `json:"status"`
	Hash     string `json:"hash"`
	Priority uint64 `json:"priority"`
}

// =============================================================================

// encodedTx is the payload for submitting or pricing a transaction. The
// transaction is carried in its canonical encoding.
type encodedTx struct {
	Tx hexutil.Bytes `json:"tx" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (etx encodedTx) Validate() error {
	if err := validate.Check(etx); err != nil {
		return err
	}
	return nil
}

// decode converts the payload into a transaction. A payload that can't be
// decoded is rejected as an invalid call.
func (etx encodedTx) decode() (database.Transaction, error) {
	t, err := database.DecodeTransaction(etx.Tx)
	if err != nil {
		return database.Transaction{}, validity.Invalid(validity.Call, "%s", err)
	}
	return t, nil
}

// =============================================================================

func toTx(registry *module.Registry, ns *nameservice.NameService, t database.Transaction) tx {
	out := tx{
		Hash:     t.Hash(),
		Module:   fmt.Sprintf("%d", t.Call.Module),
		Function: fmt.Sprintf("%d", t.Call.Function),
		Args:     t.Call.Args,
	}

	if signer, signed := t.Signer(); signed {
		out.Signer = &signer
		out.SignerName = ns.Lookup(signer)
	}

	if mod, exists := registry.Module(t.Call.Module); exists {
		out.Module = mod.Name()
		for _, c := range mod.Calls() {
			if c.Index == t.Call.Function {
				out.Function = c.Name
				break
			}
		}
	}

	return out
}

func toBlock(registry *module.Registry, ns *nameservice.NameService, b database.Block) block {
	txs := make([]tx, len(b.Transactions))
	for i, t := range b.Transactions {
		txs[i] = toTx(registry, ns, t)
	}

	out := block{
		Hash:           b.Hash(),
		ParentHash:     b.Header.ParentHash,
		Number:         b.Header.Number,
		StateRoot:      b.Header.StateRoot,
		ExtrinsicsRoot: b.Header.ExtrinsicsRoot,
		Transactions:   txs,
	}

	if author, exists := b.Header.Author(); exists {
		out.Author = ns.Lookup(author)
	}

	return out
}

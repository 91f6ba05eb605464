// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ardanlabs/statecore/business/web/errs"
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/state"
	"github.com/ardanlabs/statecore/foundation/web"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// ProcessBlock takes a block authored elsewhere, executes it and if that
// passes, adds the block to the local chain.
func (h Handlers) ProcessBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Decode the JSON in the post call into block data.
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	// Convert the block data into a block. This checks the recorded hash
	// matches the header.
	block, err := database.ToBlock(blockData)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode block: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("process block", "traceid", v.TraceID, "blk", block.Header.Number, "hash", block.Hash())

	// Ask the state package to execute the block. If the resulting state
	// matches the header, the block is added to the chain.
	if err := h.State.ProcessBlock(ctx, block); err != nil {
		h.Log.Infow("process block", "traceid", v.TraceID, "ERROR", err)
		return errs.NewTrusted(errors.New("block not accepted"), http.StatusNotAcceptable)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latestBlock := h.State.LatestBlock()

	status := struct {
		GenesisHash       common.Hash `json:"genesis_hash"`
		LatestBlockHash   common.Hash `json:"latest_block_hash"`
		LatestBlockNumber uint64      `json:"latest_block_number"`
		StateRoot         common.Hash `json:"state_root"`
		Uncommitted       int         `json:"uncommitted"`
	}{
		GenesisHash:       h.State.GenesisHeader().Hash(),
		LatestBlockHash:   latestBlock.Hash(),
		LatestBlockNumber: latestBlock.Header.Number,
		StateRoot:         latestBlock.Header.StateRoot,
		Uncommitted:       h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// BlocksByNumber returns all the blocks based on the specified to/from values.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(errors.New("from greater than to"), http.StatusBadRequest)
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		bd, err := database.NewBlockData(block)
		if err != nil {
			return err
		}
		blockData[i] = bd
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions in their canonical
// encoding.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.Mempool()

	out := make([]string, len(txs))
	for i, tx := range txs {
		data, err := tx.Encode()
		if err != nil {
			return err
		}
		out[i] = fmt.Sprintf("%#x", data)
	}

	return web.Respond(ctx, w, out, http.StatusOK)
}

// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ardanlabs/statecore/business/web/errs"
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/state"
	"github.com/ardanlabs/statecore/foundation/events"
	"github.com/ardanlabs/statecore/foundation/nameservice"
	"github.com/ardanlabs/statecore/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide committed block events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, "viewer:")
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information and the identity of the chain.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	header := h.State.GenesisHeader()
	version := h.State.Version()

	gen := struct {
		Chain   genesisInfo `json:"chain"`
		Genesis any         `json:"genesis"`
	}{
		Chain: genesisInfo{
			Hash:         header.Hash(),
			Header:       header,
			SpecVersion:  version.SpecVersion,
			TxVersion:    version.TxVersion,
			MetadataHash: h.State.Runtime().Registry.MetadataHash(),
		},
		Genesis: h.State.Genesis(),
	}

	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Metadata returns the description of every module in registry order.
func (h Handlers) Metadata(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Metadata(), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	registry := h.State.Runtime().Registry

	mempool := h.State.Mempool()

	txs := make([]tx, len(mempool))
	for i, t := range mempool {
		txs[i] = toTx(registry, h.NS, t)
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// Accounts returns the current balances for the specified account or for
// every known account when none is specified.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ids []database.AccountID

	switch name := web.Param(r, "account"); name {
	case "":
		known := make(map[database.AccountID]struct{})
		for id := range h.State.Genesis().Balances {
			known[id] = struct{}{}
		}
		for id := range h.NS.Copy() {
			known[id] = struct{}{}
		}
		for id := range known {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	default:
		id, err := h.NS.Resolve(name)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		ids = append(ids, id)
	}

	acts := make([]info, 0, len(ids))
	for _, id := range ids {
		act, err := h.State.QueryAccount(id)
		if err != nil {
			return fmt.Errorf("query account[%s]: %w", id, err)
		}

		acts = append(acts, info{
			Account: id,
			Name:    h.NS.Lookup(id),
			Free:    act.Free,
			Nonce:   act.Nonce,
		})
	}

	ai := actInfo{
		LatestBlock: h.State.LatestBlock().Hash(),
		Uncommitted: h.State.QueryMempoolLength(),
		Accounts:    acts,
	}

	return web.Respond(ctx, w, ai, http.StatusOK)
}

// BlocksByAccount returns all the blocks holding a transaction signed by
// the account, or every block when no account is specified.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var id database.AccountID

	if name := web.Param(r, "account"); name != "" {
		var err error
		if id, err = h.NS.Resolve(name); err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	dbBlocks, err := h.State.QueryBlocksByAccount(id)
	if err != nil {
		return err
	}

	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	registry := h.State.Runtime().Registry

	blocks := make([]block, len(dbBlocks))
	for i, b := range dbBlocks {
		blocks[i] = toBlock(registry, h.NS, b)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// LastEvents returns the events and dispatch outcomes of the last committed
// block.
func (h Handlers) LastEvents(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	number, records, outcomes := h.State.QueryLastEvents()

	le := lastEvents{
		Block:    number,
		Events:   records,
		Outcomes: outcomes,
	}

	return web.Respond(ctx, w, le, http.StatusOK)
}

// SubmitTransaction validates a signed transaction and adds it to the
// mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var etx encodedTx
	if err := web.Decode(r, &etx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	t, err := etx.decode()
	if err != nil {
		return err
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "tx", t, "hash", t.Hash())

	valid, err := h.State.SubmitTransaction(t)
	if err != nil {
		return err
	}

	resp := submitted{
		Status:   "transaction added to mempool",
		Hash:     t.Hash().Hex(),
		Priority: valid.Priority,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// QueryFee returns the fee a transaction would pay if it was included in
// the next block.
func (h Handlers) QueryFee(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var etx encodedTx
	if err := web.Decode(r, &etx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	t, err := etx.decode()
	if err != nil {
		return err
	}

	fee, err := h.State.QueryFee(t)
	if err != nil {
		return errs.NewTrusted(errors.New("unable to price transaction"), http.StatusBadRequest)
	}

	resp := struct {
		Details any    `json:"details"`
		Final   uint64 `json:"final"`
	}{
		Details: fee,
		Final:   fee.Final(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

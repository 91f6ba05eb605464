package module

import (
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/common"
)

// Env is the execution environment of a block. It gives modules access to
// the block overlay through their own prefix and to the event log. Meter
// holds the cost consumed by the block so far.
type Env struct {
	Overlay    *storage.Overlay
	Log        *eventlog.Log
	Meter      *weight.Meter
	Registry   *Registry
	Number     uint64
	ParentHash common.Hash
	Author     *database.AccountID
}

// Context returns the context for the module registered at the index.
func (e *Env) Context(idx uint8) *Context {
	m, _ := e.Registry.Module(idx)

	return &Context{
		env:   e,
		index: idx,
		name:  m.Name(),
		Store: storage.Prefixed(e.Overlay, m.Prefix()),
	}
}

// ContextOf returns the context for the specified module. This is how a
// module exposes its state to other modules through its own methods.
func (e *Env) ContextOf(m Module) *Context {
	idx, exists := e.Registry.Index(m.Name())
	if !exists {
		return &Context{
			env:   e,
			index: 0xff,
			name:  m.Name(),
			Store: storage.Prefixed(e.Overlay, m.Prefix()),
		}
	}

	return e.Context(idx)
}

// =============================================================================

// Context is the view of the environment handed to a module. Store only
// reaches keys under the module's prefix.
type Context struct {
	env   *Env
	index uint8
	name  string
	Store storage.KV
}

// Env returns the execution environment.
func (c *Context) Env() *Env {
	return c.env
}

// Index returns the id of the module.
func (c *Context) Index() uint8 {
	return c.index
}

// Number returns the number of the block being executed.
func (c *Context) Number() uint64 {
	return c.env.Number
}

// Author returns the author of the block being executed.
func (c *Context) Author() (database.AccountID, bool) {
	if c.env.Author == nil {
		return database.AccountID{}, false
	}
	return *c.env.Author, true
}

// Emit appends an event on behalf of the module.
func (c *Context) Emit(name string, data any) {
	c.env.Log.Emit(c.index, c.name, name, data)
}

// Fail records a storage fault. The block can't be finalized afterwards.
func (c *Context) Fail(err error) {
	c.env.Overlay.Fail(err)
}

// DispatchAs dispatches a nested call under the specified origin. The
// nested call is atomic: on error its changes and events are discarded
// while the caller's are kept.
func (c *Context) DispatchAs(origin Origin, rc RuntimeCall) (PostInfo, error) {
	sc := c.env.Overlay.Scope()
	mark := c.env.Log.Mark()

	post, err := c.env.Registry.Dispatch(c.env, origin, rc)
	if err != nil {
		c.env.Log.Truncate(mark)
		if rerr := c.env.Overlay.Rollback(sc); rerr != nil {
			return post, rerr
		}
		return post, err
	}

	if cerr := c.env.Overlay.Commit(sc); cerr != nil {
		return post, cerr
	}

	return post, nil
}

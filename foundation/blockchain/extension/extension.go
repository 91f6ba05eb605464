// Package extension implements the ordered pipeline of checks every
// transaction passes before its call is dispatched. Each extension owns one
// explicit payload slot in the transaction, may add implicit data to the
// signed payload and may defer work until after the call executed.
package extension

import (
	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
	"github.com/ethereum/go-ethereum/rlp"
)

// PostDispatch is deferred work registered by an extension. It runs after
// the call executed with what the call reported and its error, if any.
type PostDispatch func(env *module.Env, post module.PostInfo, dispatchErr error) error

// Extension represents the behavior of a single check in the pipeline.
// Validate is used by the pool against committed state and must not write.
// Prepare runs at inclusion and may write to the overlay.
type Extension interface {
	Name() string
	Implicit(env *module.Env, tx *Tx, payload []byte) ([]byte, error)
	Validate(env *module.Env, tx *Tx, payload []byte) (validity.Valid, error)
	Prepare(env *module.Env, tx *Tx, payload []byte) (PostDispatch, error)
}

// BareExtension is implemented by the extensions that also apply to
// unsigned transactions. Every other extension is skipped for them.
type BareExtension interface {
	ValidateBare(env *module.Env, tx *Tx) (validity.Valid, error)
	PrepareBare(env *module.Env, tx *Tx) (PostDispatch, error)
}

// =============================================================================

// Tx is a transaction resolved against the registry.
type Tx struct {
	Raw      database.Transaction
	Call     module.RuntimeCall
	Info     module.DispatchInfo
	Length   uint64
	Implicit [][]byte

	// pending holds, per extension, why its implicit data couldn't be
	// produced. The error surfaces when the pipeline reaches that extension.
	pending []error
}

// Check decodes the call of the transaction and measures its encoded
// length. A call the registry can't decode makes the transaction invalid.
func Check(registry *module.Registry, raw database.Transaction) (*Tx, error) {
	data, err := raw.Encode()
	if err != nil {
		return nil, validity.Invalid(validity.Call, "encoding: %w", err)
	}

	rc, err := registry.Decode(raw.Call)
	if err != nil {
		return nil, validity.Invalid(validity.Call, "%w", err)
	}

	tx := Tx{
		Raw:    raw,
		Call:   rc,
		Info:   rc.Info(),
		Length: uint64(len(data)),
	}

	return &tx, nil
}

// Signed reports whether the transaction carries a signature.
func (tx *Tx) Signed() bool {
	return tx.Raw.IsSigned()
}

// Signer returns the claimed signer of the transaction.
func (tx *Tx) Signer() (database.AccountID, bool) {
	return tx.Raw.Signer()
}

// implicitComplete reports whether every extension produced its implicit
// data, so the signed payload can be rebuilt.
func (tx *Tx) implicitComplete() bool {
	for _, err := range tx.pending {
		if err != nil {
			return false
		}
	}
	return true
}

// pendingAt returns the implicit data error of the extension at the index.
func (tx *Tx) pendingAt(i int) error {
	if i < len(tx.pending) {
		return tx.pending[i]
	}
	return nil
}

// =============================================================================

// Pipeline is the fixed, ordered sequence of extensions.
type Pipeline struct {
	exts []Extension
}

// New constructs a pipeline running the extensions in the specified order.
func New(exts ...Extension) *Pipeline {
	return &Pipeline{exts: exts}
}

// Len returns the number of extensions, which is the number of payloads a
// signed transaction must carry.
func (p *Pipeline) Len() int {
	return len(p.exts)
}

// Names returns the names of the extensions in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.exts))
	for i, ext := range p.exts {
		names[i] = ext.Name()
	}
	return names
}

// Validate runs every extension in validation mode and combines their
// results. The first rejection is returned.
func (p *Pipeline) Validate(env *module.Env, tx *Tx) (validity.Valid, error) {
	valid := validity.Default()

	if !tx.Signed() {
		if err := p.checkBare(tx); err != nil {
			return validity.Valid{}, err
		}

		for _, ext := range p.exts {
			bare, ok := ext.(BareExtension)
			if !ok {
				continue
			}

			v, err := bare.ValidateBare(env, tx)
			if err != nil {
				return validity.Valid{}, err
			}
			valid = valid.Combine(v)
		}

		return valid, nil
	}

	if err := p.implicit(env, tx); err != nil {
		return validity.Valid{}, err
	}

	for i, ext := range p.exts {
		if err := tx.pendingAt(i); err != nil {
			return validity.Valid{}, err
		}

		v, err := ext.Validate(env, tx, tx.Raw.Extensions[i])
		if err != nil {
			return validity.Valid{}, err
		}
		valid = valid.Combine(v)
	}

	return valid, nil
}

// Prepare runs every extension in inclusion mode and returns the deferred
// work in the order it must run. The caller must discard every change and
// restore the block meter when an error is returned.
func (p *Pipeline) Prepare(env *module.Env, tx *Tx) ([]PostDispatch, error) {
	var posts []PostDispatch

	if !tx.Signed() {
		if err := p.checkBare(tx); err != nil {
			return nil, err
		}

		for _, ext := range p.exts {
			bare, ok := ext.(BareExtension)
			if !ok {
				continue
			}

			post, err := bare.PrepareBare(env, tx)
			if err != nil {
				return nil, err
			}
			if post != nil {
				posts = append(posts, post)
			}
		}

		return reverse(posts), nil
	}

	if err := p.implicit(env, tx); err != nil {
		return nil, err
	}

	for i, ext := range p.exts {
		if err := tx.pendingAt(i); err != nil {
			return nil, err
		}

		post, err := ext.Prepare(env, tx, tx.Raw.Extensions[i])
		if err != nil {
			return nil, err
		}
		if post != nil {
			posts = append(posts, post)
		}
	}

	return reverse(posts), nil
}

// PostDispatchAll runs the deferred work returned by Prepare.
func PostDispatchAll(env *module.Env, posts []PostDispatch, post module.PostInfo, dispatchErr error) error {
	for _, fn := range posts {
		if err := fn(env, post, dispatchErr); err != nil {
			return err
		}
	}

	return nil
}

// implicit collects the implicit data of every extension so it can be
// included in the signed payload. A failure is kept against its extension
// so rejections are still reported in pipeline order. Authorization can't
// verify an incomplete payload and leaves the rejection to that extension.
func (p *Pipeline) implicit(env *module.Env, tx *Tx) error {
	if len(tx.Raw.Extensions) != len(p.exts) {
		return validity.Invalid(validity.Call, "got %d extension payloads, exp %d", len(tx.Raw.Extensions), len(p.exts))
	}

	implicit := make([][]byte, len(p.exts))
	pending := make([]error, len(p.exts))
	for i, ext := range p.exts {
		data, err := ext.Implicit(env, tx, tx.Raw.Extensions[i])
		if err != nil {
			pending[i] = err
			continue
		}
		implicit[i] = data
	}

	tx.Implicit = implicit
	tx.pending = pending

	return nil
}

// checkBare verifies an unsigned transaction carries no payloads.
func (p *Pipeline) checkBare(tx *Tx) error {
	if len(tx.Raw.Extensions) != 0 {
		return validity.Invalid(validity.Call, "unsigned transaction with %d extension payloads", len(tx.Raw.Extensions))
	}
	return nil
}

// =============================================================================

// decodePayload decodes the explicit payload of an extension.
func decodePayload[T any](name string, payload []byte) (T, error) {
	var v T
	if err := rlp.DecodeBytes(payload, &v); err != nil {
		return v, validity.Invalid(validity.Call, "%s: payload: %w", name, err)
	}
	return v, nil
}

func reverse(posts []PostDispatch) []PostDispatch {
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
	return posts
}

func tag(prefix string, parts ...[]byte) []byte {
	t := []byte(prefix)
	for _, part := range parts {
		t = append(t, part...)
	}
	return t
}

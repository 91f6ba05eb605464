package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KV represents the behavior modules use to read and write their own state.
// Reads never return errors, a failing backend is recorded with Fail and
// surfaces when the block is finalized.
type KV interface {
	Get(key []byte) ([]byte, bool)
	Has(key []byte) bool
	Set(key []byte, value []byte)
	Remove(key []byte)
	Fail(err error)
}

// =============================================================================

// prefixed provides a view of a KV restricted to keys under a prefix.
type prefixed struct {
	kv     KV
	prefix []byte
}

// Prefixed returns a view of the specified KV where every key is placed
// under the specified prefix.
func Prefixed(kv KV, prefix []byte) KV {
	return &prefixed{kv: kv, prefix: prefix}
}

// Key returns the full key for a prefixed key.
func Key(prefix []byte, key []byte) []byte {
	full := make([]byte, 0, len(prefix)+len(key))
	full = append(full, prefix...)
	return append(full, key...)
}

func (p *prefixed) Get(key []byte) ([]byte, bool) {
	return p.kv.Get(Key(p.prefix, key))
}

func (p *prefixed) Has(key []byte) bool {
	return p.kv.Has(Key(p.prefix, key))
}

func (p *prefixed) Set(key []byte, value []byte) {
	p.kv.Set(Key(p.prefix, key), value)
}

func (p *prefixed) Remove(key []byte) {
	p.kv.Remove(Key(p.prefix, key))
}

func (p *prefixed) Fail(err error) {
	p.kv.Fail(err)
}

// =============================================================================

// GetRLP reads and decodes the value stored under the key. It returns false
// when the key holds no value. A value that can't be decoded is corrupt
// state, it is recorded as a fault and reported as missing.
func GetRLP[T any](kv KV, key []byte) (T, bool) {
	var v T

	data, found := kv.Get(key)
	if !found {
		return v, false
	}

	if err := rlp.DecodeBytes(data, &v); err != nil {
		kv.Fail(fmt.Errorf("decoding key[%x]: %w", key, err))
		return v, false
	}

	return v, true
}

// PutRLP encodes and stores the value under the key.
func PutRLP(kv KV, key []byte, v any) {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		kv.Fail(fmt.Errorf("encoding key[%x]: %w", key, err))
		return
	}

	kv.Set(key, data)
}

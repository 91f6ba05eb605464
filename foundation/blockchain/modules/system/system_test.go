package system_test

import (
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/system"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, s *system.System) (*module.Env, *module.Registry) {
	registry, err := module.NewRegistry(s)
	require.NoError(t, err)

	store := storage.NewMemory()
	t.Cleanup(func() { store.Close() })

	env := module.Env{Overlay: store.NewOverlay(), Log: eventlog.New(), Meter: weight.NewMeter(weight.Limits{}), Registry: registry}

	return &env, registry
}

func TestNonce(t *testing.T) {
	s := system.New(system.Config{})
	env, _ := newEnv(t, s)

	who := database.AccountID{1}
	require.Equal(t, uint64(0), s.Nonce(env, who))

	s.IncNonce(env, who)
	s.IncNonce(env, who)
	require.Equal(t, uint64(2), s.Nonce(env, who))
	require.Equal(t, uint64(0), s.Nonce(env, database.AccountID{2}))
}

func TestBlockHashWindow(t *testing.T) {
	s := system.New(system.Config{BlockHashCount: 2})
	env, _ := newEnv(t, s)

	author := database.AccountID{9}
	for n := uint64(1); n <= 4; n++ {
		s.NoteBlock(env, n, common.Hash{byte(n - 1)}, &author)
	}

	require.Equal(t, uint64(4), s.Number(env))
	require.Equal(t, common.Hash{3}, s.ParentHash(env))

	for n, kept := range []bool{false, false, true, true} {
		h, found := s.BlockHash(env, uint64(n))
		require.Equal(t, kept, found, "block %d", n)
		if kept {
			require.Equal(t, common.Hash{byte(n)}, h)
		}
	}
}

func TestRemark(t *testing.T) {
	s := system.New(system.Config{})
	env, registry := newEnv(t, s)

	who := database.AccountID{1}
	origin := module.SignedOrigin(who)

	_, err := registry.Dispatch(env, origin, module.RuntimeCall{Module: 0, Call: system.Remark{Remark: []byte("hi")}})
	require.NoError(t, err)
	require.Zero(t, env.Log.Len())

	_, err = registry.Dispatch(env, origin, module.RuntimeCall{Module: 0, Call: system.RemarkWithEvent{Remark: []byte("hi")}})
	require.NoError(t, err)

	recs := env.Log.Records()
	require.Len(t, recs, 1)
	require.Equal(t, system.EventRemarked, recs[0].Name)
	require.Equal(t, system.RemarkedEvent{Sender: who, Hash: crypto.Keccak256Hash([]byte("hi"))}, recs[0].Data)

	_, err = registry.Dispatch(env, module.RootOrigin(), module.RuntimeCall{Module: 0, Call: system.Remark{}})
	require.ErrorIs(t, err, module.ErrBadOrigin)
}

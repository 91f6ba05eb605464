package sudo_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/balances"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/sudo"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/stretchr/testify/require"
)

var (
	root  = database.AccountID{0x01}
	other = database.AccountID{0x02}
)

func TestSudo(t *testing.T) {
	b := balances.New()
	s := sudo.New()

	registry, err := module.NewRegistry(b, s)
	require.NoError(t, err)

	store := storage.NewMemory()
	defer store.Close()

	env := module.Env{Overlay: store.NewOverlay(), Log: eventlog.New(), Meter: weight.NewMeter(weight.Limits{}), Registry: registry}
	s.Genesis(&env, root)

	inner, err := registry.Encode(balances.Name, balances.ForceSetBalance{Who: other, Free: 9})
	require.NoError(t, err)

	call, err := sudo.NewSudoCall(inner)
	require.NoError(t, err)

	wire, err := registry.Encode(sudo.Name, call)
	require.NoError(t, err)

	w, err := wire.Wire()
	require.NoError(t, err)

	// Decoding the wrapped call needs the registry.
	_, err = registry.Decode(w)
	require.True(t, errors.Is(err, sudo.ErrUnbound))

	s.Bind(registry)

	rc, err := registry.Decode(w)
	require.NoError(t, err)
	require.False(t, balances.ForceSetBalance{}.Info().Weight.AnyGt(rc.Call.Info().Weight), "sudo weight covers the inner call")

	_, err = registry.Dispatch(&env, module.SignedOrigin(other), rc)
	require.True(t, errors.Is(err, sudo.ErrRequireSudo))

	post, err := registry.Dispatch(&env, module.SignedOrigin(root), rc)
	require.NoError(t, err)
	require.Equal(t, module.PaysNo, post.Pays)
	require.Equal(t, uint64(9), b.FreeBalance(&env, other))

	var sudid []sudo.SudidEvent
	for _, rec := range env.Log.Records() {
		if rec.Name == sudo.EventSudid {
			sudid = append(sudid, rec.Data.(sudo.SudidEvent))
		}
	}
	require.Len(t, sudid, 1)
	require.True(t, sudid[0].Ok)

	setKey, err := registry.Encode(sudo.Name, sudo.SetKey{New: other})
	require.NoError(t, err)

	_, err = registry.Dispatch(&env, module.SignedOrigin(root), setKey)
	require.NoError(t, err)

	key, found := s.Key(&env)
	require.True(t, found)
	require.Equal(t, other, key)
}

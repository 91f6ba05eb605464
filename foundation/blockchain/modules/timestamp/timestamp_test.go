package timestamp_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/timestamp"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	ts := timestamp.New(timestamp.Config{MinimumPeriod: 1_000})

	registry, err := module.NewRegistry(ts)
	require.NoError(t, err)

	store := storage.NewMemory()
	defer store.Close()

	env := module.Env{Overlay: store.NewOverlay(), Log: eventlog.New(), Meter: weight.NewMeter(weight.Limits{}), Registry: registry}

	set := func(now uint64) error {
		_, err := registry.Dispatch(&env, module.NoneOrigin(), module.RuntimeCall{Module: 0, Call: timestamp.Set{Now: now}})
		return err
	}

	// Block 1.
	require.True(t, errors.Is(registry.Finalize(&env, 1), timestamp.ErrNotSet))
	require.NoError(t, set(5_000))
	require.True(t, errors.Is(set(9_000), timestamp.ErrAlreadySet))
	require.NoError(t, registry.Finalize(&env, 1))
	require.Equal(t, uint64(5_000), ts.Now(&env))

	// Block 2.
	require.True(t, errors.Is(set(5_500), timestamp.ErrTooEarly))
	require.NoError(t, set(6_000))
	require.NoError(t, registry.Finalize(&env, 2))
	require.Equal(t, uint64(6_000), ts.Now(&env))

	_, err = registry.Dispatch(&env, module.RootOrigin(), module.RuntimeCall{Module: 0, Call: timestamp.Set{Now: 8_000}})
	require.True(t, errors.Is(err, module.ErrBadOrigin), "only an inherent can set the time")
}

func TestCreateInherent(t *testing.T) {
	registry, err := module.NewRegistry(timestamp.New(timestamp.Config{}))
	require.NoError(t, err)

	tx, err := timestamp.CreateInherent(registry, 42)
	require.NoError(t, err)
	require.False(t, tx.IsSigned())

	rc, err := registry.Decode(tx.Call)
	require.NoError(t, err)
	require.Equal(t, timestamp.Set{Now: 42}, rc.Call)
}

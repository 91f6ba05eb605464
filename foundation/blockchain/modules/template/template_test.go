package template_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/template"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/stretchr/testify/require"
)

func TestTemplate(t *testing.T) {
	tm := template.New()

	registry, err := module.NewRegistry(tm)
	require.NoError(t, err)

	store := storage.NewMemory()
	defer store.Close()

	env := module.Env{Overlay: store.NewOverlay(), Log: eventlog.New(), Meter: weight.NewMeter(weight.Limits{}), Registry: registry}
	origin := module.SignedOrigin(database.AccountID{1})

	dispatch := func(call module.Call) error {
		_, err := registry.Dispatch(&env, origin, module.RuntimeCall{Module: 0, Call: call})
		return err
	}

	_, found := tm.Something(&env)
	require.False(t, found)

	require.True(t, errors.Is(dispatch(template.CauseError{}), template.ErrNoneValue))

	require.NoError(t, dispatch(template.DoSomething{Something: 7}))
	require.NoError(t, dispatch(template.CauseError{}))

	v, found := tm.Something(&env)
	require.True(t, found)
	require.Equal(t, uint32(8), v)

	require.NoError(t, dispatch(template.DoSomething{Something: ^uint32(0)}))
	require.True(t, errors.Is(dispatch(template.CauseError{}), template.ErrStorageOverflow))

	recs := env.Log.Records()
	require.Len(t, recs, 2)
	require.Equal(t, template.EventSomethingStored, recs[0].Name)
}

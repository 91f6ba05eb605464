package payment_test

import (
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, p *payment.Payment) *module.Env {
	registry, err := module.NewRegistry(p)
	require.NoError(t, err)

	store := storage.NewMemory()
	t.Cleanup(func() { store.Close() })

	env := module.Env{Overlay: store.NewOverlay(), Log: eventlog.New(), Meter: weight.NewMeter(weight.Limits{}), Registry: registry}
	p.Genesis(&env)

	return &env
}

func TestFeeDetails(t *testing.T) {
	p := payment.New(payment.Config{BaseFee: 10, ByteFee: 2, WeightFee: 1, WeightUnit: 1_000})
	env := newEnv(t, p)

	require.Equal(t, uint64(payment.MultiplierOne), p.NextFeeMultiplier(env))

	info := module.DispatchInfo{Weight: weight.New(1_000_000, 0)}

	fd := p.FeeDetails(env, 5, info, 3)
	require.NotNil(t, fd.InclusionFee)
	require.Equal(t, uint64(10), fd.InclusionFee.BaseFee)
	require.Equal(t, uint64(10), fd.InclusionFee.LenFee)
	require.Equal(t, uint64(1_000), fd.InclusionFee.AdjustedWeightFee)
	require.Equal(t, uint64(1_023), fd.Final())
	require.Equal(t, fd.Final(), p.ComputeFee(env, 5, info, 3))

	free := module.DispatchInfo{Weight: weight.New(1_000_000, 0), Pays: module.PaysNo}
	fd = p.FeeDetails(env, 5, free, 3)
	require.Nil(t, fd.InclusionFee)
	require.Equal(t, uint64(3), fd.Final())
}

func TestActualFee(t *testing.T) {
	p := payment.New(payment.Config{BaseFee: 10, ByteFee: 2, WeightFee: 1, WeightUnit: 1_000})
	env := newEnv(t, p)

	info := module.DispatchInfo{Weight: weight.New(1_000_000, 0)}

	used := weight.New(500_000, 0)
	require.Equal(t, uint64(523), p.ComputeActualFee(env, 5, info, module.PostInfo{ActualWeight: &used}, 3))

	more := weight.New(5_000_000, 0)
	require.Equal(t, p.ComputeFee(env, 5, info, 3), p.ComputeActualFee(env, 5, info, module.PostInfo{ActualWeight: &more}, 3))

	require.Equal(t, uint64(3), p.ComputeActualFee(env, 5, info, module.PostInfo{Pays: module.PaysNo}, 3))
}

func TestFeeSaturates(t *testing.T) {
	p := payment.New(payment.Config{BaseFee: 10, ByteFee: 2})
	env := newEnv(t, p)

	fd := p.FeeDetails(env, ^uint64(0), module.DispatchInfo{}, 1)
	require.Equal(t, ^uint64(0), fd.InclusionFee.LenFee)
	require.Equal(t, ^uint64(0), fd.Final())
}

func TestNoteFeePaid(t *testing.T) {
	p := payment.New(payment.Config{})
	env := newEnv(t, p)

	who := database.AccountID{7}
	p.NoteFeePaid(env, who, 42, 2)

	recs := env.Log.Records()
	require.Len(t, recs, 1)
	require.Equal(t, payment.EventTransactionFeePaid, recs[0].Name)
	require.Equal(t, payment.FeePaidEvent{Who: who, ActualFee: 42, Tip: 2}, recs[0].Data)
}

package weight_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func limits() weight.Limits {
	return weight.Limits{
		MaxBlock:           weight.New(1000, 100),
		MaxExtrinsic:       weight.New(400, 40),
		BaseExtrinsic:      weight.New(10, 1),
		MaxBlockLength:     500,
		MaxExtrinsicLength: 200,
	}
}

// =============================================================================

func Test_TryConsume(t *testing.T) {
	type item struct {
		w      weight.Weight
		length uint64
		class  weight.Class
		err    bool
	}

	type table struct {
		name   string
		items  []item
		weight weight.Weight
		length uint64
	}

	tt := []table{
		{
			name: "fits",
			items: []item{
				{w: weight.New(400, 40), length: 100},
				{w: weight.New(600, 60), length: 400},
			},
			weight: weight.New(1000, 100),
			length: 500,
		},
		{
			name: "reftime overflow",
			items: []item{
				{w: weight.New(900, 10), length: 10},
				{w: weight.New(101, 10), length: 10, err: true},
				{w: weight.New(100, 10), length: 10},
			},
			weight: weight.New(1000, 20),
			length: 20,
		},
		{
			name: "proof size overflow",
			items: []item{
				{w: weight.New(10, 90), length: 10},
				{w: weight.New(10, 11), length: 10, err: true},
			},
			weight: weight.New(10, 90),
			length: 10,
		},
		{
			name: "length overflow",
			items: []item{
				{w: weight.New(10, 1), length: 450},
				{w: weight.New(10, 1), length: 51, err: true},
			},
			weight: weight.New(10, 1),
			length: 450,
		},
		{
			name: "mandatory ignores block limit",
			items: []item{
				{w: weight.New(1000, 100), length: 500},
				{w: weight.New(10, 1), length: 10, class: weight.Mandatory},
				{w: weight.New(1, 0), length: 0, err: true},
			},
			weight: weight.New(1010, 101),
			length: 510,
		},
		{
			name: "mandatory above the block limit",
			items: []item{
				{w: weight.New(1001, 1), length: 10, class: weight.Mandatory, err: true},
				{w: weight.New(10, 101), length: 10, class: weight.Mandatory, err: true},
				{w: weight.New(10, 1), length: 501, class: weight.Mandatory, err: true},
				{w: weight.New(1000, 100), length: 500, class: weight.Mandatory},
			},
			weight: weight.New(1000, 100),
			length: 500,
		},
	}

	t.Log("Given the need to meter the cost of a block.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					m := weight.NewMeter(limits())

					for i, it := range tst.items {
						before := m.Checkpoint()
						err := m.TryConsume(it.w, it.length, it.class)

						switch it.err {
						case true:
							if !errors.Is(err, weight.ErrOverflow) {
								t.Fatalf("\t%s\tTest %d:\tShould reject item %d with overflow: %v", failed, testID, i, err)
							}
							if m.Checkpoint() != before {
								t.Fatalf("\t%s\tTest %d:\tShould leave the totals unchanged on item %d.", failed, testID, i)
							}
						default:
							if err != nil {
								t.Fatalf("\t%s\tTest %d:\tShould accept item %d: %v", failed, testID, i, err)
							}
						}
					}
					t.Logf("\t%s\tTest %d:\tShould accept and reject the right items.", success, testID)

					if m.Consumed() != tst.weight {
						t.Logf("\t\tTest %d:\tgot: %s", testID, m.Consumed())
						t.Logf("\t\tTest %d:\texp: %s", testID, tst.weight)
						t.Fatalf("\t%s\tTest %d:\tShould have the right weight total.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould have the right weight total.", success, testID)

					if m.Length() != tst.length {
						t.Fatalf("\t%s\tTest %d:\tShould have the right length total: got %d, exp %d", failed, testID, m.Length(), tst.length)
					}
					t.Logf("\t%s\tTest %d:\tShould have the right length total.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_CheckpointRestore(t *testing.T) {
	t.Log("Given the need to undo a rejected transaction.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen restoring a checkpoint.", testID)
		{
			m := weight.NewMeter(limits())

			if err := m.TryConsume(weight.New(100, 10), 10, weight.Normal); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould consume: %v", failed, testID, err)
			}

			cp := m.Checkpoint()

			if err := m.TryConsume(weight.New(100, 10), 10, weight.Normal); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould consume: %v", failed, testID, err)
			}

			m.Restore(cp)

			if m.Consumed() != weight.New(100, 10) || m.Length() != 10 {
				t.Fatalf("\t%s\tTest %d:\tShould be back to the checkpoint, got %s:%d", failed, testID, m.Consumed(), m.Length())
			}
			t.Logf("\t%s\tTest %d:\tShould be back to the checkpoint.", success, testID)

			m.Reset()
			if !m.Consumed().IsZero() || m.Remaining() != limits().MaxBlock {
				t.Fatalf("\t%s\tTest %d:\tShould be empty after a reset.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be empty after a reset.", success, testID)
		}
	}
}

func Test_Arithmetic(t *testing.T) {
	top := weight.New(^uint64(0), 5)

	if got := top.Add(weight.New(1, 1)); got != weight.New(^uint64(0), 6) {
		t.Fatalf("Should saturate on add, got %s", got)
	}

	if got := weight.New(5, 5).Sub(weight.New(10, 1)); got != weight.New(0, 4) {
		t.Fatalf("Should saturate on sub, got %s", got)
	}

	if got := weight.New(5, 50).Min(weight.New(10, 1)); got != weight.New(5, 1) {
		t.Fatalf("Should take the per dimension minimum, got %s", got)
	}

	if err := limits().Validate(); err != nil {
		t.Fatalf("Should have valid limits: %v", err)
	}

	bad := limits()
	bad.MaxExtrinsic = weight.New(2000, 1)
	if err := bad.Validate(); err == nil {
		t.Fatalf("Should reject an extrinsic limit above the block limit.")
	}
}

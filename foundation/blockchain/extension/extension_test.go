package extension_test

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/eventlog"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/balances"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/payment"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/system"
	"github.com/ardanlabs/statecore/foundation/blockchain/modules/timestamp"
	"github.com/ardanlabs/statecore/foundation/blockchain/storage"
	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
	"github.com/ardanlabs/statecore/foundation/blockchain/weight"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

var (
	genesisHash = common.HexToHash("0x01")
	version     = extension.Version{SpecVersion: 100, TxVersion: 1}
	dest        = database.AccountID(common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"))
)

type runtime struct {
	sys      *system.System
	bal      *balances.Balances
	registry *module.Registry
	pipeline *extension.Pipeline
	env      *module.Env
}

func newRuntime(t *testing.T, number uint64, funds uint64) runtime {
	sys := system.New(system.Config{})
	bal := balances.New()
	pay := payment.New(payment.Config{BaseFee: 10, WeightFee: 1, WeightUnit: 1_000_000})

	registry, err := module.NewRegistry(sys, timestamp.New(timestamp.Config{}), bal, pay)
	if err != nil {
		t.Fatalf("Should be able to build the registry: %s", err)
	}

	env := module.Env{
		Overlay:  storage.NewMemory().NewOverlay(),
		Log:      eventlog.New(),
		Meter:    weight.NewMeter(limits()),
		Registry: registry,
		Number:   number,
	}

	if err := bal.Genesis(&env, map[database.AccountID]uint64{signer(t): funds}); err != nil {
		t.Fatalf("Should be able to endow the signer: %s", err)
	}

	for n := uint64(1); n <= number; n++ {
		parent := genesisHash
		if n > 1 {
			parent = blockHash(n - 1)
		}
		sys.NoteBlock(&env, n, parent, nil)
	}

	pipeline := extension.Default(extension.Config{
		Version:  version,
		Genesis:  genesisHash,
		Registry: registry,
		Nonces:   sys,
		Hashes:   sys,
		Charger:  pay,
		Currency: bal,
	})

	return runtime{sys: sys, bal: bal, registry: registry, pipeline: pipeline, env: &env}
}

func blockHash(n uint64) common.Hash {
	return common.BytesToHash([]byte{0xbb, byte(n)})
}

func limits() weight.Limits {
	return weight.Limits{
		MaxBlock:           weight.New(2_000_000_000_000, 5_000_000),
		MaxExtrinsic:       weight.New(1_500_000_000_000, 3_750_000),
		BaseExtrinsic:      weight.New(100_000, 0),
		MaxBlockLength:     5 * 1024 * 1024,
		MaxExtrinsicLength: 1024,
	}
}

func privateKey(t *testing.T) *ecdsa.PrivateKey {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %s", err)
	}
	return pk
}

func signer(t *testing.T) database.AccountID {
	return database.PublicKeyToAccountID(privateKey(t).PublicKey)
}

func params() extension.Params {
	return extension.Params{
		Version: version,
		Genesis: genesisHash,
	}
}

func transfer(t *testing.T, r runtime, value uint64, p extension.Params) database.Transaction {
	rc, err := r.registry.Encode(balances.Name, balances.Transfer{Dest: dest, Value: value})
	if err != nil {
		t.Fatalf("Should be able to encode the call: %s", err)
	}

	call, err := rc.Wire()
	if err != nil {
		t.Fatalf("Should be able to produce the wire call: %s", err)
	}

	tx, err := extension.Sign(call, p, privateKey(t))
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	return tx
}

// =============================================================================

func Test_Prepare(t *testing.T) {
	t.Log("Given the need to run the pipeline at inclusion.")
	{
		r := newRuntime(t, 1, 1_000)
		who := signer(t)

		tx, err := extension.Check(r.registry, transfer(t, r, 100, params()))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to check the transaction: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to check the transaction.", success)

		posts, err := r.pipeline.Prepare(r.env, tx)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to prepare the transaction: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to prepare the transaction.", success)

		if n := r.sys.Nonce(r.env, who); n != 1 {
			t.Fatalf("\t%s\tShould increment the nonce to 1: got %d", failed, n)
		}
		t.Logf("\t%s\tShould increment the nonce to 1.", success)

		fee := uint64(10 + 50)
		if free := r.bal.FreeBalance(r.env, who); free != 1_000-fee {
			t.Fatalf("\t%s\tShould withdraw the fee up front: got %d", failed, free)
		}
		t.Logf("\t%s\tShould withdraw the fee up front.", success)

		exp := weight.New(50_000_000+100_000, 3_593)
		if got := r.env.Meter.Consumed(); got != exp {
			t.Fatalf("\t%s\tShould consume the declared weight: got %s, exp %s", failed, got, exp)
		}
		t.Logf("\t%s\tShould consume the declared weight.", success)

		half := weight.New(25_000_000, 0)
		if err := extension.PostDispatchAll(r.env, posts, module.PostInfo{ActualWeight: &half}, nil); err != nil {
			t.Fatalf("\t%s\tShould be able to run the post dispatch work: %s", failed, err)
		}

		if free := r.bal.FreeBalance(r.env, who); free != 1_000-10-25 {
			t.Fatalf("\t%s\tShould refund the unused weight fee: got %d", failed, free)
		}
		t.Logf("\t%s\tShould refund the unused weight fee.", success)

		_, err = r.pipeline.Prepare(r.env, tx)
		if reason, _ := validity.ReasonOf(err); reason != validity.Stale {
			t.Fatalf("\t%s\tShould reject the replayed transaction as stale: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject the replayed transaction as stale.", success)
	}
}

func Test_Rejections(t *testing.T) {
	type table struct {
		name   string
		number uint64
		funds  uint64
		tx     func(t *testing.T, r runtime) database.Transaction
		reason validity.Reason
	}

	tt := []table{
		{
			name: "bad signature", number: 1, funds: 1_000, reason: validity.BadProof,
			tx: func(t *testing.T, r runtime) database.Transaction {
				tx := transfer(t, r, 100, params())
				tx.Signature.Sig[10] ^= 0xff
				return tx
			},
		},
		{
			name: "zero sender fails authorization first", number: 1, funds: 1_000, reason: validity.BadProof,
			tx: func(t *testing.T, r runtime) database.Transaction {
				tx := transfer(t, r, 100, params())
				tx.Signature.Signer = database.ZeroAccountID
				return tx
			},
		},
		{
			name: "wrong version", number: 1, funds: 1_000, reason: validity.BadVersion,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				p.Version.SpecVersion++
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "wrong genesis", number: 1, funds: 1_000, reason: validity.BadGenesis,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				p.Genesis = common.HexToHash("0x02")
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "wrong version on an expired era", number: 6, funds: 1_000, reason: validity.BadVersion,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				p.Version.TxVersion++
				p.Era = extension.Era{Birth: 0, Period: 4}
				p.BirthHash = genesisHash
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "wrong genesis on an unknown birth block", number: 3, funds: 1_000, reason: validity.BadGenesis,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				p.Genesis = common.HexToHash("0x02")
				p.Era = extension.Era{Birth: 7, Period: 64}
				p.BirthHash = blockHash(7)
				r.env.Number = 9
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "mortal with a wrong birth hash", number: 4, funds: 1_000, reason: validity.BadProof,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				p.Era = extension.Era{Birth: 2, Period: 64}
				p.BirthHash = blockHash(9)
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "era not yet started", number: 1, funds: 1_000, reason: validity.Future,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				p.Era = extension.Era{Birth: 1, Period: 8}
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "era expired", number: 6, funds: 1_000, reason: validity.Expired,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				p.Era = extension.Era{Birth: 0, Period: 4}
				p.BirthHash = genesisHash
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "future nonce", number: 1, funds: 1_000, reason: validity.Future,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				p.Nonce = 3
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "fee not coverable", number: 1, funds: 5, reason: validity.Payment,
			tx: func(t *testing.T, r runtime) database.Transaction {
				return transfer(t, r, 1, params())
			},
		},
		{
			name: "metadata mismatch", number: 1, funds: 1_000, reason: validity.BadMetadataHash,
			tx: func(t *testing.T, r runtime) database.Transaction {
				p := params()
				h := common.HexToHash("0x03")
				p.Metadata = &h
				return transfer(t, r, 100, p)
			},
		},
		{
			name: "missing payloads", number: 1, funds: 1_000, reason: validity.Call,
			tx: func(t *testing.T, r runtime) database.Transaction {
				tx := transfer(t, r, 100, params())
				tx.Extensions = tx.Extensions[:3]
				return tx
			},
		},
		{
			name: "unsigned signed call", number: 1, funds: 1_000, reason: validity.MissingSignature,
			tx: func(t *testing.T, r runtime) database.Transaction {
				tx := transfer(t, r, 100, params())
				return database.NewUnsigned(tx.Call)
			},
		},
	}

	t.Log("Given the need to reject invalid transactions without side effects.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					r := newRuntime(t, tst.number, tst.funds)
					who := signer(t)
					before := r.bal.FreeBalance(r.env, who)

					tx, err := extension.Check(r.registry, tst.tx(t, r))
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to check the transaction: %s", failed, testID, err)
					}

					sc := r.env.Overlay.Scope()
					cp := r.env.Meter.Checkpoint()

					_, err = r.pipeline.Prepare(r.env, tx)
					reason, ok := validity.ReasonOf(err)
					if !ok || reason != tst.reason {
						t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.reason)
						t.Fatalf("\t%s\tTest %d:\tShould reject with the right reason.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject with the right reason.", success, testID)

					if err := r.env.Overlay.Rollback(sc); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to roll back: %s", failed, testID, err)
					}
					r.env.Meter.Restore(cp)

					if n := r.sys.Nonce(r.env, who); n != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould leave the nonce unchanged: got %d", failed, testID, n)
					}
					if free := r.bal.FreeBalance(r.env, who); free != before {
						t.Fatalf("\t%s\tTest %d:\tShould leave the balance unchanged: got %d", failed, testID, free)
					}
					t.Logf("\t%s\tTest %d:\tShould leave no trace.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_AncientBirthBlock(t *testing.T) {
	r := newRuntime(t, 3, 1_000)

	p := params()
	p.Era = extension.Era{Birth: 7, Period: 64}

	r.env.Number = 9
	tx, err := extension.Check(r.registry, transfer(t, r, 100, p))
	if err != nil {
		t.Fatalf("Should be able to check the transaction: %s", err)
	}

	_, err = r.pipeline.Prepare(r.env, tx)
	if reason, _ := validity.ReasonOf(err); reason != validity.AncientBirthBlock {
		t.Fatalf("Should reject an unknown birth block, got %v", err)
	}
}

func Test_Validate(t *testing.T) {
	t.Log("Given the need to validate transactions for the pool.")
	{
		r := newRuntime(t, 4, 1_000)
		who := signer(t)

		p := params()
		p.Nonce = 2
		p.Tip = 7
		p.Era = extension.Era{Birth: 3, Period: 8}
		p.BirthHash = blockHash(3)

		tx, err := extension.Check(r.registry, transfer(t, r, 100, p))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to check the transaction: %s", failed, err)
		}

		valid, err := r.pipeline.Validate(r.env, tx)
		if err != nil {
			t.Fatalf("\t%s\tShould accept a future nonce in the pool: %s", failed, err)
		}
		t.Logf("\t%s\tShould accept a future nonce in the pool.", success)

		if valid.Priority != 7 {
			t.Fatalf("\t%s\tShould use the tip as priority: got %d", failed, valid.Priority)
		}
		t.Logf("\t%s\tShould use the tip as priority.", success)

		if valid.Longevity != 3+8-4 {
			t.Fatalf("\t%s\tShould live until the era ends: got %d", failed, valid.Longevity)
		}
		t.Logf("\t%s\tShould live until the era ends.", success)

		if len(valid.Requires) != 1 || string(valid.Requires[0]) != string(extension.NonceTag(who, 1)) {
			t.Fatalf("\t%s\tShould require the previous nonce: got %x", failed, valid.Requires)
		}
		if len(valid.Provides) != 1 || string(valid.Provides[0]) != string(extension.NonceTag(who, 2)) {
			t.Fatalf("\t%s\tShould provide its own nonce: got %x", failed, valid.Provides)
		}
		t.Logf("\t%s\tShould tag the transaction by nonce.", success)

		if n := r.sys.Nonce(r.env, who); n != 0 {
			t.Fatalf("\t%s\tShould not change the nonce: got %d", failed, n)
		}
		if got := r.env.Meter.Consumed(); !got.IsZero() {
			t.Fatalf("\t%s\tShould not consume weight: got %s", failed, got)
		}
		t.Logf("\t%s\tShould not change any state.", success)
	}
}

package transfer

import (
	"context"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axiompay/internal/babyjub"
	"axiompay/internal/dlog"
	"axiompay/internal/elgamal"
	"axiompay/internal/escrow"
	"axiompay/internal/fixedpoint"
	"axiompay/internal/keystore"
	"axiompay/internal/ledger"
	"axiompay/internal/pipeline"
	"axiompay/internal/transactions"
)

const searchBound = 1 << 16

var (
	artifactsDir string
	scale        = fixedpoint.Scale{From: 18, To: 0}

	poolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	aliceAddr = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bobAddr   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	carolAddr = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "axiompay-transfer-")
	if err != nil {
		panic(err)
	}
	artifactsDir = dir
	for _, def := range Definitions() {
		if _, err := (pipeline.Artifacts{Dir: dir}).Setup(def); err != nil {
			panic(err)
		}
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type transferRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *transferRecorder) ObserveTransfer(kind, state string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+state)
}

type fixture struct {
	orch     *Orchestrator
	pool     *ledger.Pool
	trapdoor *escrow.SecretKey
	bob      *babyjub.KeyPair
	carol    *babyjub.KeyPair
	recorder *transferRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	art := pipeline.Artifacts{Dir: artifactsDir}

	verifiers := make(map[transactions.Kind]groth16.VerifyingKey)
	for _, kind := range transactions.Kinds {
		vk, err := art.LoadVerifyingKey(kind)
		require.NoError(t, err)
		verifiers[kind] = vk
	}
	pool := ledger.NewPool(poolAddr, scale, verifiers)

	store := keystore.New(&keystore.MemoryBackend{}, keystore.Options{
		Bits:            512,
		MarginBits:      64,
		RandomnessBound: elgamal.DefaultRandomnessBound,
	})
	trapdoor, err := store.GenerateOrRetrieve(ctx)
	require.NoError(t, err)

	f := &fixture{pool: pool, trapdoor: trapdoor, recorder: &transferRecorder{}}
	f.bob, err = babyjub.GenerateKeyPair(nil)
	require.NoError(t, err)
	f.carol, err = babyjub.GenerateKeyPair(nil)
	require.NoError(t, err)
	require.NoError(t, pool.RegisterAccount(bobAddr, f.bob.Public.Pack()))
	require.NoError(t, pool.RegisterAccount(carolAddr, f.carol.Public.Pack()))
	pool.Mint(aliceAddr, units(t, 100))

	prover := pipeline.New(pipeline.Workspace{Root: t.TempDir()}, art, Definitions()...)
	f.orch = New(pool, prover,
		elgamal.NewEncrypter(elgamal.DefaultRandomnessBound, searchBound),
		trapdoor.Public(),
		&dlog.Recoverer{Bound: searchBound, Workers: 4},
		scale,
	)
	f.orch.Observer = f.recorder
	return f
}

func units(t *testing.T, n uint64) *uint256.Int {
	t.Helper()
	v, err := scale.Upscale(n)
	require.NoError(t, err)
	return v
}

func (f *fixture) publicBalance(t *testing.T, addr common.Address) *uint256.Int {
	t.Helper()
	b, err := f.pool.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return b
}

func (f *fixture) privateBalance(t *testing.T, addr common.Address, kp *babyjub.KeyPair) uint64 {
	t.Helper()
	b, err := f.orch.PrivateBalance(context.Background(), addr, kp)
	require.NoError(t, err)
	return b
}

func (f *fixture) audit(t *testing.T, hash common.Hash) *AuditReport {
	t.Helper()
	rec, err := f.pool.Record(hash)
	require.NoError(t, err)
	r, err := f.orch.Audit(context.Background(), f.trapdoor, rec)
	require.NoError(t, err)
	return r
}

func TestTwentyTwoUnitRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	amount := units(t, 22)

	// public -> private
	tr, err := f.orch.Execute(ctx, Request{From: aliceAddr, To: bobAddr, Amount: amount, Recipient: f.bob})
	require.NoError(t, err)
	assert.Equal(t, transactions.Pub2Priv, tr.Kind)
	assert.Equal(t, Confirmed, tr.State)
	assert.Equal(t, uint64(22), tr.Amount)
	require.NotNil(t, tr.RecipientBalance)
	assert.Equal(t, uint64(22), *tr.RecipientBalance)
	assert.Equal(t, units(t, 78), f.publicBalance(t, aliceAddr))
	assert.Equal(t, units(t, 22), f.publicBalance(t, poolAddr))

	r := f.audit(t, tr.TxHash)
	require.NotNil(t, r.ToAmount)
	assert.Nil(t, r.FromAmount)
	assert.Equal(t, uint64(22), *r.ToAmount)
	assert.True(t, r.Consistent)

	// private -> private
	tr, err = f.orch.Execute(ctx, Request{From: bobAddr, To: carolAddr, Amount: amount, Sender: f.bob, Recipient: f.carol})
	require.NoError(t, err)
	assert.Equal(t, transactions.Priv2Priv, tr.Kind)
	assert.Equal(t, Confirmed, tr.State)
	require.NotNil(t, tr.RecipientBalance)
	assert.Equal(t, uint64(22), *tr.RecipientBalance)
	assert.Equal(t, uint64(0), f.privateBalance(t, bobAddr, f.bob))

	r = f.audit(t, tr.TxHash)
	require.NotNil(t, r.FromAmount)
	require.NotNil(t, r.ToAmount)
	assert.Equal(t, uint64(22), *r.FromAmount)
	assert.Equal(t, uint64(22), *r.ToAmount)
	assert.True(t, r.Consistent)

	// private -> public
	tr, err = f.orch.Execute(ctx, Request{From: carolAddr, To: aliceAddr, Amount: amount, Sender: f.carol})
	require.NoError(t, err)
	assert.Equal(t, transactions.Priv2Pub, tr.Kind)
	assert.Equal(t, Confirmed, tr.State)
	assert.Nil(t, tr.RecipientBalance)
	assert.Equal(t, uint64(0), f.privateBalance(t, carolAddr, f.carol))
	assert.Equal(t, units(t, 100), f.publicBalance(t, aliceAddr))
	assert.True(t, f.publicBalance(t, poolAddr).IsZero())

	r = f.audit(t, tr.TxHash)
	require.NotNil(t, r.FromAmount)
	assert.Equal(t, uint64(22), *r.FromAmount)
	assert.True(t, r.Consistent)

	assert.Equal(t, []string{"pub2priv:confirmed", "priv2priv:confirmed", "priv2pub:confirmed"}, f.recorder.events)
	assert.Len(t, f.pool.Records(), 3)
}

func TestExecuteRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stranger, err := babyjub.GenerateKeyPair(nil)
	require.NoError(t, err)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"public to public", Request{From: aliceAddr, To: poolAddr, Amount: units(t, 1)}, transactions.ErrTxTypeNotSupported},
		{"decimal truncate", Request{From: aliceAddr, To: bobAddr, Amount: new(uint256.Int).AddUint64(units(t, 1), 1)}, fixedpoint.ErrDecimalTruncate},
		{"missing sender key", Request{From: bobAddr, To: carolAddr, Amount: units(t, 1)}, ErrSenderKeyRequired},
		{"wrong sender key", Request{From: bobAddr, To: carolAddr, Amount: units(t, 1), Sender: stranger}, ErrSenderKeyMismatch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, err := f.orch.Execute(ctx, c.req)
			require.ErrorIs(t, err, c.want)
			assert.Equal(t, Failed, tr.State)
			assert.Equal(t, Building, tr.FailedAt)
		})
	}
	assert.Empty(t, f.pool.Records())
}

func TestOverdraftFailsAtWitness(t *testing.T) {
	f := newFixture(t)
	tr, err := f.orch.Execute(context.Background(), Request{From: bobAddr, To: carolAddr, Amount: units(t, 5), Sender: f.bob})
	require.Error(t, err)

	var serr *pipeline.StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, pipeline.StageWitness, serr.Stage)
	assert.NotErrorIs(t, err, pipeline.ErrStagePanic)
	assert.Equal(t, Failed, tr.State)
	assert.Equal(t, Building, tr.FailedAt)
	assert.Equal(t, []string{"priv2priv:failed"}, f.recorder.events)
	assert.Empty(t, f.pool.Records())
}

func TestFreshRandomnessPerExecute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var first, second escrow.ViewKey
	for i, vk := range []*escrow.ViewKey{&first, &second} {
		tr, err := f.orch.Execute(ctx, Request{From: aliceAddr, To: bobAddr, Amount: units(t, uint64(i+1))})
		require.NoError(t, err)
		*vk = tr.ToViewKey
	}
	k1, err := escrow.Open(f.trapdoor, first)
	require.NoError(t, err)
	k2, err := escrow.Open(f.trapdoor, second)
	require.NoError(t, err)
	assert.NotEqual(t, 0, k1.Cmp(k2))
	assert.Equal(t, uint64(3), f.privateBalance(t, bobAddr, f.bob))
}

func TestBuildInputShapes(t *testing.T) {
	kp, err := babyjub.NewKeyPair(big.NewInt(7))
	require.NoError(t, err)
	enc := elgamal.NewEncrypter(elgamal.DefaultRandomnessBound, searchBound)
	from, err := enc.Encrypt(kp.Public, 3)
	require.NoError(t, err)
	to, err := enc.Encrypt(kp.Public, 3)
	require.NoError(t, err)
	bal := elgamal.EncryptWithK(kp.Public, 10, big.NewInt(5))

	full := Material{
		Sender: kp, SenderBalance: &bal, Recipient: &kp.Public,
		Balance: 10, Amount: 3, FromEncryption: from, ToEncryption: to,
	}
	senderOnly := Material{Sender: kp, SenderBalance: &bal, Balance: 10, Amount: 3, FromEncryption: from}
	recipientOnly := Material{Recipient: &kp.Public, Amount: 3, ToEncryption: to}

	cases := []struct {
		kind transactions.Kind
		m    Material
		ok   bool
	}{
		{transactions.Pub2Priv, recipientOnly, true},
		{transactions.Pub2Priv, full, false},
		{transactions.Priv2Priv, full, true},
		{transactions.Priv2Priv, senderOnly, false},
		{transactions.Priv2Pub, senderOnly, true},
		{transactions.Priv2Pub, full, false},
		{transactions.Priv2Pub, recipientOnly, false},
		{transactions.Kind("pub2pub"), full, false},
	}
	for _, c := range cases {
		in, err := BuildInput(c.kind, c.m)
		if !c.ok {
			assert.ErrorIs(t, err, transactions.ErrTxTypeNotSupported, c.kind)
			continue
		}
		require.NoError(t, err, c.kind)
		assert.Equal(t, c.kind, in.Kind())
	}
}

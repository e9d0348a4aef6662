package dlog

import (
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
)

type recordingObserver struct {
	calls      int
	candidates uint64
	found      bool
}

func (o *recordingObserver) ObserveSearch(_ time.Duration, candidates uint64, found bool) {
	o.calls++
	o.candidates = candidates
	o.found = found
}

func TestRecoverRoundTrip(t *testing.T) {
	kp, err := babyjub.GenerateKeyPair(nil)
	require.NoError(t, err)
	enc := elgamal.NewEncrypter(elgamal.DefaultRandomnessBound, 20000)

	for _, m := range []uint64{0, 1, 22, 4095, 4096, 19999} {
		ct, err := enc.Encrypt(kp.Public, m)
		require.NoError(t, err)

		got, err := Recover(context.Background(), ct.Ciphertext, kp.Private, 20000, 4)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestWorkerCountIndependence(t *testing.T) {
	kp, err := babyjub.GenerateKeyPair(nil)
	require.NoError(t, err)
	ct := elgamal.EncryptWithK(kp.Public, 7321, big.NewInt(99))

	one, err := Recover(context.Background(), ct, kp.Private, 10000, 1)
	require.NoError(t, err)
	for _, w := range []int{2, 3, 7, 16, 0} {
		got, err := Recover(context.Background(), ct, kp.Private, 10000, w)
		require.NoError(t, err)
		assert.Equal(t, one, got, "workers=%d", w)
	}
}

func TestSearchNotFound(t *testing.T) {
	target := babyjub.Base().ScalarMul(big.NewInt(500))
	_, err := Search(context.Background(), target, 500, 4)
	assert.ErrorIs(t, err, ErrDiscreteLogNotFound)

	_, err = Search(context.Background(), target, 0, 4)
	assert.ErrorIs(t, err, ErrDiscreteLogNotFound)
}

func TestSearchFullRangeBound(t *testing.T) {
	target := babyjub.Base().ScalarMul(big.NewInt(5))
	for _, workers := range []int{2, 3, 64} {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		m, err := Search(ctx, target, math.MaxUint64, workers)
		cancel()
		require.NoError(t, err, "workers=%d", workers)
		assert.Equal(t, uint64(5), m)
	}
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := babyjub.Base().ScalarMul(big.NewInt(1 << 30))
	_, err := Search(ctx, target, 1<<20, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecoverWithEscrow(t *testing.T) {
	kp, err := babyjub.GenerateKeyPair(nil)
	require.NoError(t, err)
	enc := elgamal.NewEncrypter(elgamal.DefaultRandomnessBound, 5000)
	ct, err := enc.Encrypt(kp.Public, 1234)
	require.NoError(t, err)

	obs := &recordingObserver{}
	r := &Recoverer{Bound: 5000, Workers: 3, Observer: obs}
	got, err := r.RecoverWithEscrow(context.Background(), ct.C2, ct.K, kp.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), got)
	assert.Equal(t, 1, obs.calls)
	assert.True(t, obs.found)
	assert.NotZero(t, obs.candidates)

	// A wrong k must not yield the amount.
	wrong := new(big.Int).Add(ct.K, big.NewInt(1))
	_, err = r.RecoverWithEscrow(context.Background(), ct.C2, wrong, kp.Public)
	assert.ErrorIs(t, err, ErrDiscreteLogNotFound)
}

package escrow

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var maxK = new(big.Int).Lsh(big.NewInt(1), 38)

func testKey(t *testing.T) *SecretKey {
	t.Helper()
	sk, err := GenerateKey(context.Background(), 512, nil)
	require.NoError(t, err)
	return sk
}

func TestEscrowRoundTrip(t *testing.T) {
	sk := testKey(t)
	require.Equal(t, 512, sk.BitLen())
	require.NoError(t, CheckMargin(sk.Public(), maxK, 64))

	for _, k := range []*big.Int{big.NewInt(1), big.NewInt(123456789), new(big.Int).Sub(maxK, big.NewInt(1))} {
		vk, err := Escrow(sk.Public(), k)
		require.NoError(t, err)

		got, err := Open(sk, vk)
		require.NoError(t, err)
		assert.Equal(t, 0, k.Cmp(got))
	}
}

func TestEscrowIsRandomized(t *testing.T) {
	sk := testKey(t)
	a, err := Escrow(sk.Public(), big.NewInt(5))
	require.NoError(t, err)
	b, err := Escrow(sk.Public(), big.NewInt(5))
	require.NoError(t, err)
	assert.NotEqual(t, []byte(a), []byte(b))
}

func TestCheckMargin(t *testing.T) {
	sk, err := GenerateKey(context.Background(), 64, nil)
	require.NoError(t, err)
	err = CheckMargin(sk.Public(), maxK, 64)
	assert.ErrorIs(t, err, ErrInsufficientModulus)
	assert.NoError(t, CheckMargin(sk.Public(), maxK, 8))
}

func TestOpenRejectsGarbage(t *testing.T) {
	sk := testKey(t)
	_, err := Open(sk, nil)
	assert.ErrorIs(t, err, ErrViewKeyInvalid)
	_, err = Open(sk, ViewKey{0x00})
	assert.Error(t, err)
}

func TestRebuildFromPrimes(t *testing.T) {
	sk := testKey(t)
	again, err := NewSecretKeyFromPrimes(sk.P(), sk.Q())
	require.NoError(t, err)
	assert.Equal(t, 0, sk.N().Cmp(again.N()))

	vk, err := Escrow(sk.Public(), big.NewInt(77))
	require.NoError(t, err)
	got, err := Open(again, vk)
	require.NoError(t, err)
	assert.Equal(t, int64(77), got.Int64())

	_, err = NewSecretKeyFromPrimes(sk.P(), sk.P())
	assert.ErrorIs(t, err, ErrInvalidFactors)
	_, err = NewSecretKeyFromPrimes(new(big.Int).Add(sk.P(), big.NewInt(2)), sk.Q())
	assert.Error(t, err)
}

func TestViewKeyJSON(t *testing.T) {
	vk := ViewKey{0xde, 0xad}
	b, err := json.Marshal(vk)
	require.NoError(t, err)
	assert.JSONEq(t, `"0xdead"`, string(b))

	var got ViewKey
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, vk, got)
}

package priv2priv

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
)

func params(t *testing.T, balance, amount uint64) Params {
	t.Helper()
	alice, err := babyjub.GenerateKeyPair(nil)
	require.NoError(t, err)
	bob, err := babyjub.GenerateKeyPair(nil)
	require.NoError(t, err)

	enc := elgamal.NewEncrypter(elgamal.DefaultRandomnessBound, 1<<32)
	from, err := enc.Encrypt(alice.Public, amount)
	require.NoError(t, err)
	to, err := enc.Encrypt(bob.Public, amount)
	require.NoError(t, err)

	return Params{
		Sender:         alice,
		Recipient:      bob.Public,
		SenderBalance:  elgamal.EncryptWithK(alice.Public, balance, big.NewInt(777)),
		Balance:        balance,
		Amount:         amount,
		FromEncryption: from,
		ToEncryption:   to,
	}
}

func TestInputDocument(t *testing.T) {
	in, err := Build(params(t, 22, 22))
	require.NoError(t, err)

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	for _, k := range []string{
		"pa", "pb", "caAmountK", "cbAmountK", "c1ayAmount", "c1byAmount",
		"c2ayAmount", "c2byAmount", "c1balance", "c2balance", "privateKey", "balance", "amount",
	} {
		assert.Contains(t, keys, k)
	}
	assert.Len(t, keys, 13)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in, decoded)
}

func TestCircuitSatisfied(t *testing.T) {
	in, err := Build(params(t, 30, 22))
	require.NoError(t, err)
	assert.NoError(t, test.IsSolved(&Circuit{}, in.Assignment(), ecc.BN254.ScalarField()))
}

func TestCircuitRejectsOverdraft(t *testing.T) {
	in, err := Build(params(t, 10, 22))
	require.NoError(t, err)
	assert.Error(t, test.IsSolved(&Circuit{}, in.Assignment(), ecc.BN254.ScalarField()))
}

func TestCircuitRejectsWrongBalance(t *testing.T) {
	p := params(t, 30, 22)
	p.Balance = 40
	in, err := Build(p)
	require.NoError(t, err)
	assert.Error(t, test.IsSolved(&Circuit{}, in.Assignment(), ecc.BN254.ScalarField()))
}

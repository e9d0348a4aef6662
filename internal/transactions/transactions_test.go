package transactions

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
	"axiompay/internal/escrow"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		from, to bool
		want     Kind
	}{
		{false, true, Pub2Priv},
		{true, true, Priv2Priv},
		{true, false, Priv2Pub},
	}
	for _, c := range cases {
		got, err := Classify(c.from, c.to)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := Classify(false, false)
	assert.ErrorIs(t, err, ErrTxTypeNotSupported)

	_, err = ParseKind("pub2pub")
	assert.ErrorIs(t, err, ErrTxTypeNotSupported)
}

func ciphertext(m uint64) *elgamal.Ciphertext {
	kp, _ := babyjub.NewKeyPair(big.NewInt(99))
	ct := elgamal.EncryptWithK(kp.Public, m, big.NewInt(12))
	return &ct
}

func TestProofCalldataRoundTrip(t *testing.T) {
	p := &ProofCalldata{
		PA:         [2]*big.Int{big.NewInt(1), big.NewInt(2)},
		PB:         [2][2]*big.Int{{big.NewInt(3), big.NewInt(4)}, {big.NewInt(5), big.NewInt(6)}},
		PC:         [2]*big.Int{big.NewInt(7), big.NewInt(8)},
		PubSignals: []*big.Int{big.NewInt(9), big.NewInt(10), big.NewInt(11)},
	}
	raw, err := p.Pack()
	require.NoError(t, err)

	got, err := UnpackProof(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = UnpackProof([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedCalldata)
}

func TestBundles(t *testing.T) {
	from, to := ciphertext(3), ciphertext(4)
	env := &Envelope{From: from, To: to, FromViewKey: escrow.ViewKey{1}, ToViewKey: escrow.ViewKey{2}}
	proof := []byte("proof")

	for _, kind := range Kinds {
		raw, err := EncodeBundle(kind, env, proof)
		require.NoError(t, err, kind)

		got, gotProof, err := DecodeBundle(kind, raw)
		require.NoError(t, err, kind)
		assert.Equal(t, proof, gotProof)

		switch kind {
		case Pub2Priv:
			assert.Nil(t, got.From)
			assert.True(t, got.To.Equal(*to))
			assert.Equal(t, env.ToViewKey, got.ToViewKey)
		case Priv2Pub:
			assert.Nil(t, got.To)
			assert.True(t, got.From.Equal(*from))
			assert.Equal(t, env.FromViewKey, got.FromViewKey)
		case Priv2Priv:
			assert.True(t, got.From.Equal(*from))
			assert.True(t, got.To.Equal(*to))
		}
	}
}

func TestEncodeBundleShapeMismatch(t *testing.T) {
	_, err := EncodeBundle(Priv2Priv, &Envelope{To: ciphertext(1), ToViewKey: escrow.ViewKey{1}}, nil)
	assert.ErrorIs(t, err, ErrTxTypeNotSupported)

	_, err = EncodeBundle(Priv2Pub, &Envelope{To: ciphertext(1), ToViewKey: escrow.ViewKey{1}}, nil)
	assert.ErrorIs(t, err, ErrTxTypeNotSupported)

	_, err = EncodeBundle(Kind("pub2pub"), &Envelope{}, nil)
	assert.ErrorIs(t, err, ErrTxTypeNotSupported)
}

func TestDecodeBundleRejectsOffCurve(t *testing.T) {
	raw, err := twoPartyArgs.Pack(&twoPartyBundle{
		C1:      [2]*big.Int{big.NewInt(1), big.NewInt(1)},
		C2:      [2]*big.Int{big.NewInt(0), big.NewInt(1)},
		ViewKey: []byte{1},
		Proof:   []byte{},
	})
	require.NoError(t, err)
	_, _, err = DecodeBundle(Pub2Priv, raw)
	assert.ErrorIs(t, err, babyjub.ErrInvalidPoint)
}

func TestBundleCarriesWideViewKeys(t *testing.T) {
	// A 2048-bit modulus gives 512-byte ciphertexts.
	wide := make(escrow.ViewKey, 512)
	for i := range wide {
		wide[i] = byte(i)
	}
	env := &Envelope{From: ciphertext(5), To: ciphertext(6), FromViewKey: wide, ToViewKey: wide}

	for _, kind := range Kinds {
		raw, err := EncodeBundle(kind, env, []byte("proof"))
		require.NoError(t, err, kind)
		got, _, err := DecodeBundle(kind, raw)
		require.NoError(t, err, kind)
		if kind != Pub2Priv {
			assert.Equal(t, wide, got.FromViewKey, kind)
		}
		if kind != Priv2Pub {
			assert.Equal(t, wide, got.ToViewKey, kind)
		}
	}
}

package babyjub

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupLaw(t *testing.T) {
	g := Base()
	require.True(t, g.Add(Identity()).Equal(g))
	require.True(t, g.Sub(g).IsIdentity())
	require.True(t, g.ScalarMul(Order()).IsIdentity())

	two := g.ScalarMul(big.NewInt(2))
	assert.True(t, two.Equal(g.Add(g)))

	minusOne := new(big.Int).Sub(Order(), big.NewInt(1))
	assert.True(t, g.ScalarMul(minusOne).Equal(g.Neg()))
	assert.True(t, g.ScalarMul(big.NewInt(-1)).Equal(g.Neg()))
}

func TestNewPointRejectsOffCurve(t *testing.T) {
	_, err := NewPoint(big.NewInt(1), big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidPoint)

	p, err := NewPoint(Base().X(), Base().Y())
	require.NoError(t, err)
	assert.True(t, p.Equal(Base()))
}

func TestRejectsLowOrderComponent(t *testing.T) {
	// (0, -1) is the point of order two.
	minusOne := new(big.Int).Sub(fr.Modulus(), big.NewInt(1))
	_, err := NewPoint(big.NewInt(0), minusOne)
	assert.ErrorIs(t, err, ErrInvalidPoint)

	var torsion, mixed twistededwards.PointAffine
	torsion.X.SetZero()
	torsion.Y.SetBigInt(minusOne)
	require.True(t, torsion.IsOnCurve())
	mixed.Add(&curve.Base, &torsion)
	require.True(t, mixed.IsOnCurve())

	_, err = FromAffine(mixed)
	assert.ErrorIs(t, err, ErrInvalidPoint)
	_, err = NewPoint(mixed.X.BigInt(new(big.Int)), mixed.Y.BigInt(new(big.Int)))
	assert.ErrorIs(t, err, ErrInvalidPoint)

	b := mixed.Bytes()
	_, err = Unpack(hex.EncodeToString(b[:]))
	assert.ErrorIs(t, err, ErrInvalidPoint)

	_, err = NewPoint(Base().X(), Base().Y())
	assert.NoError(t, err)
}

func TestPointJSON(t *testing.T) {
	p := Base().ScalarMul(big.NewInt(12345))
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var coords []string
	require.NoError(t, json.Unmarshal(b, &coords))
	require.Len(t, coords, 2)
	assert.Equal(t, p.X().String(), coords[0])

	var q Point
	require.NoError(t, json.Unmarshal(b, &q))
	assert.True(t, p.Equal(q))

	var bad Point
	err = json.Unmarshal([]byte(`["1","1"]`), &bad)
	assert.ErrorIs(t, err, ErrInvalidPoint)
}

func TestPackUnpack(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)

	q, err := Unpack(kp.Public.Pack())
	require.NoError(t, err)
	assert.True(t, kp.Public.Equal(q))

	_, err = Unpack("zz")
	assert.ErrorIs(t, err, ErrInvalidPoint)
}

func TestKeyPairJSON(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	require.True(t, kp.Private.Sign() > 0)
	require.True(t, kp.Private.Cmp(Order()) < 0)

	b, err := json.Marshal(kp)
	require.NoError(t, err)

	var got KeyPair
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, 0, kp.Private.Cmp(got.Private))
	assert.True(t, kp.Public.Equal(got.Public))

	_, err = NewKeyPair(big.NewInt(0))
	assert.Error(t, err)
}

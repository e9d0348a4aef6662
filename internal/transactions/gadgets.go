package transactions

import (
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"axiompay/internal/babyjub"
)

// AmountBits is the width every in-circuit amount and balance is range checked to.
const AmountBits = 64

// NewCurve returns the in-circuit Baby Jubjub curve.
func NewCurve(api frontend.API) (twistededwards.Curve, error) {
	return twistededwards.NewEdCurve(api, tedwards.BN254)
}

// Generator returns G as a circuit point.
func Generator(curve twistededwards.Curve) twistededwards.Point {
	base := curve.Params().Base
	return twistededwards.Point{X: base[0], Y: base[1]}
}

// AssertEncryption checks that (c1y, c2y) are the y coordinates of the
// ElGamal encryption of m under pk with randomness k.
func AssertEncryption(curve twistededwards.Curve, pk twistededwards.Point, m, k, c1y, c2y frontend.Variable) {
	api := curve.API()
	g := Generator(curve)
	c1 := curve.ScalarMul(g, k)
	c2 := curve.DoubleBaseScalarMul(g, pk, m, k)
	api.AssertIsEqual(c1.Y, c1y)
	api.AssertIsEqual(c2.Y, c2y)
}

// AssertOwnsBalance checks that sk is the private key of pk and that the
// ciphertext (c1, c2) under pk decodes to balance·G. The comparison is
// shifted by G so the scalar multiplier is never zero.
func AssertOwnsBalance(curve twistededwards.Curve, pk, c1, c2 twistededwards.Point, sk, balance frontend.Variable) {
	api := curve.API()
	g := Generator(curve)

	derived := curve.ScalarMul(g, sk)
	api.AssertIsEqual(derived.X, pk.X)
	api.AssertIsEqual(derived.Y, pk.Y)

	decoded := curve.Add(c2, curve.Neg(curve.ScalarMul(c1, sk)))
	shifted := curve.Add(decoded, g)
	expected := curve.ScalarMul(g, api.Add(balance, 1))
	api.AssertIsEqual(shifted.X, expected.X)
	api.AssertIsEqual(shifted.Y, expected.Y)
}

// AssertAmount range checks v to AmountBits.
func AssertAmount(api frontend.API, v frontend.Variable) {
	api.ToBinary(v, AmountBits)
}

// CircuitPoint converts a curve point into a circuit assignment.
func CircuitPoint(p babyjub.Point) twistededwards.Point {
	return twistededwards.Point{X: p.X(), Y: p.Y()}
}

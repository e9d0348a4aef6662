// point.go - Baby Jubjub curve points (twisted Edwards curve embedded in BN254).
//
// Points are affine, on the curve and in the prime-order subgroup generated
// by G. The JSON form is a pair of
// decimal coordinate strings, the packed form is the hex of the 32-byte
// compressed encoding used by the ledger address book.

package babyjub

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/pkg/errors"
)

// ErrInvalidPoint is returned for coordinates that are not on the curve or
// not in the prime-order subgroup.
var ErrInvalidPoint = errors.New("babyjub: point is not on the curve")

var curve = twistededwards.GetEdwardsCurve()

// Point is an affine point on Baby Jubjub.
type Point struct {
	p twistededwards.PointAffine
}

// Identity returns the neutral element (0, 1).
func Identity() Point {
	var p Point
	p.p.X.SetZero()
	p.p.Y.SetOne()
	return p
}

// Base returns the generator G.
func Base() Point {
	return Point{p: curve.Base}
}

// Order returns the order of the prime subgroup generated by G.
func Order() *big.Int {
	return new(big.Int).Set(&curve.Order)
}

// NewPoint builds a point from its coordinates.
func NewPoint(x, y *big.Int) (Point, error) {
	var p Point
	if x == nil || y == nil {
		return p, ErrInvalidPoint
	}
	if !inField(x) || !inField(y) {
		return p, errors.Wrap(ErrInvalidPoint, "coordinate exceeds field modulus")
	}
	p.p.X.SetBigInt(x)
	p.p.Y.SetBigInt(y)
	if !p.p.IsOnCurve() {
		return Point{}, ErrInvalidPoint
	}
	if !inSubgroup(&p.p) {
		return Point{}, errors.Wrap(ErrInvalidPoint, "point has a low-order component")
	}
	return p, nil
}

// FromAffine wraps a gnark-crypto point.
func FromAffine(a twistededwards.PointAffine) (Point, error) {
	if !a.IsOnCurve() {
		return Point{}, ErrInvalidPoint
	}
	if !inSubgroup(&a) {
		return Point{}, errors.Wrap(ErrInvalidPoint, "point has a low-order component")
	}
	return Point{p: a}, nil
}

func inSubgroup(a *twistededwards.PointAffine) bool {
	var r twistededwards.PointAffine
	r.ScalarMultiplication(a, &curve.Order)
	return r.IsZero()
}

func inField(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(fr.Modulus()) < 0
}

// Affine returns the underlying gnark-crypto point.
func (p Point) Affine() twistededwards.PointAffine { return p.p }

// X returns the x coordinate.
func (p Point) X() *big.Int { return p.p.X.BigInt(new(big.Int)) }

// Y returns the y coordinate.
func (p Point) Y() *big.Int { return p.p.Y.BigInt(new(big.Int)) }

func (p Point) Add(q Point) Point {
	var r Point
	r.p.Add(&p.p, &q.p)
	return r
}

func (p Point) Sub(q Point) Point {
	return p.Add(q.Neg())
}

func (p Point) Neg() Point {
	var r Point
	r.p.Neg(&p.p)
	return r
}

// ScalarMul returns s·p. Negative scalars are reduced modulo the subgroup order.
func (p Point) ScalarMul(s *big.Int) Point {
	k := new(big.Int).Set(s)
	if k.Sign() < 0 {
		k.Mod(k, &curve.Order)
	}
	var r Point
	r.p.ScalarMultiplication(&p.p, k)
	return r
}

func (p Point) Equal(q Point) bool {
	return p.p.Equal(&q.p)
}

// IsIdentity reports whether p is (0, 1).
func (p Point) IsIdentity() bool {
	return p.Equal(Identity())
}

func (p Point) String() string {
	return "(" + p.X().String() + ", " + p.Y().String() + ")"
}

// MarshalJSON encodes the point as ["x", "y"] in decimal.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.X().String(), p.Y().String()})
}

// UnmarshalJSON decodes ["x", "y"] and rejects points off the curve.
func (p *Point) UnmarshalJSON(data []byte) error {
	var coords [2]string
	if err := json.Unmarshal(data, &coords); err != nil {
		return errors.Wrap(err, "babyjub: decode point")
	}
	x, okX := new(big.Int).SetString(coords[0], 10)
	y, okY := new(big.Int).SetString(coords[1], 10)
	if !okX || !okY {
		return errors.Wrapf(ErrInvalidPoint, "malformed coordinates %q", coords)
	}
	q, err := NewPoint(x, y)
	if err != nil {
		return err
	}
	*p = q
	return nil
}

// Pack returns the hex encoding of the compressed point.
func (p Point) Pack() string {
	b := p.p.Bytes()
	return hex.EncodeToString(b[:])
}

// Unpack parses a value produced by Pack.
func Unpack(s string) (Point, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, errors.Wrap(ErrInvalidPoint, err.Error())
	}
	if len(b) != fr.Bytes {
		return Point{}, errors.Wrapf(ErrInvalidPoint, "packed point has %d bytes", len(b))
	}
	var a twistededwards.PointAffine
	if _, err := a.SetBytes(b); err != nil {
		return Point{}, errors.Wrap(ErrInvalidPoint, err.Error())
	}
	return FromAffine(a)
}

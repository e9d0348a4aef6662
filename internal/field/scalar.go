// Package field holds BN254 scalar-field values as they appear in circuit
// input documents: non-negative integers below the field modulus, encoded as
// decimal strings.
package field

import (
	"encoding/json"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/pkg/errors"
)

// ErrOutOfField is returned for values that are negative or not below the modulus.
var ErrOutOfField = errors.New("field: value outside scalar field")

// Scalar is a field element serialized as a decimal string.
type Scalar struct {
	v big.Int
}

// New checks that v is a valid field element.
func New(v *big.Int) (Scalar, error) {
	var s Scalar
	if v == nil || v.Sign() < 0 || v.Cmp(fr.Modulus()) >= 0 {
		return s, ErrOutOfField
	}
	s.v.Set(v)
	return s, nil
}

// MustNew is New for values known to be in range.
func MustNew(v *big.Int) Scalar {
	s, err := New(v)
	if err != nil {
		panic(err)
	}
	return s
}

func FromUint64(v uint64) Scalar {
	var s Scalar
	s.v.SetUint64(v)
	return s
}

// Parse decodes a decimal string.
func Parse(dec string) (Scalar, error) {
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		return Scalar{}, errors.Wrapf(ErrOutOfField, "malformed decimal %q", dec)
	}
	return New(v)
}

// Big returns a copy of the value.
func (s Scalar) Big() *big.Int { return new(big.Int).Set(&s.v) }

func (s Scalar) String() string { return s.v.String() }

func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.v.String())
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	var dec string
	if err := json.Unmarshal(data, &dec); err != nil {
		return errors.Wrap(err, "field: decode scalar")
	}
	v, err := Parse(dec)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

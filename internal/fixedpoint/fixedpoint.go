// Package fixedpoint converts between ledger token amounts and the smaller
// integer amounts carried inside proofs.
package fixedpoint

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	// ErrDecimalTruncate is returned when downscaling would drop a non-zero remainder.
	ErrDecimalTruncate = errors.New("fixedpoint: amount has more precision than the circuit scale")
	// ErrOverflow is returned when a downscaled amount does not fit in 64 bits.
	ErrOverflow = errors.New("fixedpoint: amount overflows circuit range")
	// ErrBadScale is returned for scales that upscale on the way down.
	ErrBadScale = errors.New("fixedpoint: target decimals exceed source decimals")
)

// Scale maps amounts with From decimals onto amounts with To decimals.
type Scale struct {
	From uint8 `mapstructure:"from" json:"from" validate:"lte=77"`
	To   uint8 `mapstructure:"to" json:"to" validate:"ltefield=From"`
}

// Default is the 18 to 2 decimal scale.
var Default = Scale{From: 18, To: 2}

// Factor returns 10^(From-To).
func (s Scale) Factor() (*uint256.Int, error) {
	if s.To > s.From {
		return nil, ErrBadScale
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(s.From-s.To))), nil
}

// Downscale divides amount by the scale factor and rejects any remainder.
func (s Scale) Downscale(amount *uint256.Int) (uint64, error) {
	f, err := s.Factor()
	if err != nil {
		return 0, err
	}
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(amount, f, r)
	if !r.IsZero() {
		return 0, errors.Wrapf(ErrDecimalTruncate, "amount %s, remainder %s", amount.Dec(), r.Dec())
	}
	if !q.IsUint64() {
		return 0, errors.Wrapf(ErrOverflow, "amount %s", amount.Dec())
	}
	return q.Uint64(), nil
}

// Upscale multiplies a circuit amount back to ledger units.
func (s Scale) Upscale(amount uint64) (*uint256.Int, error) {
	f, err := s.Factor()
	if err != nil {
		return nil, err
	}
	out, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(amount), f)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// elgamal.go - Exponential ElGamal over Baby Jubjub.
//
// A ciphertext of m under PK is (k·G, m·G + k·PK). Ciphertexts add
// component-wise, which is how the ledger updates private balances without
// learning them. Decoding yields the point m·G; recovering m itself is a
// bounded discrete-log search (see package dlog).

package elgamal

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/pkg/errors"

	"axiompay/internal/babyjub"
)

var (
	// ErrAmountOutOfRange is returned when m would not be recoverable by search.
	ErrAmountOutOfRange = errors.New("elgamal: amount outside search bound")
	// ErrBadRandomnessBound is returned for bounds that leave no valid k.
	ErrBadRandomnessBound = errors.New("elgamal: randomness bound must exceed 1")
)

// DefaultRandomnessBound is the exclusive upper bound of k (2^38).
var DefaultRandomnessBound = new(big.Int).Lsh(big.NewInt(1), 38)

// Ciphertext is an ElGamal pair.
type Ciphertext struct {
	C1 babyjub.Point `json:"c1"`
	C2 babyjub.Point `json:"c2"`
}

// ZeroCiphertext is the encryption of 0 with k = 0, the balance of an
// account that never received funds.
func ZeroCiphertext() Ciphertext {
	return Ciphertext{C1: babyjub.Identity(), C2: babyjub.Identity()}
}

func (c Ciphertext) Add(o Ciphertext) Ciphertext {
	return Ciphertext{C1: c.C1.Add(o.C1), C2: c.C2.Add(o.C2)}
}

func (c Ciphertext) Sub(o Ciphertext) Ciphertext {
	return Ciphertext{C1: c.C1.Sub(o.C1), C2: c.C2.Sub(o.C2)}
}

func (c Ciphertext) Equal(o Ciphertext) bool {
	return c.C1.Equal(o.C1) && c.C2.Equal(o.C2)
}

// Encryption is a ciphertext together with the randomness that produced it.
// Only the sender ever holds K.
type Encryption struct {
	Ciphertext
	K *big.Int `json:"-"`
}

// Encrypter draws fresh randomness for every call to Encrypt.
type Encrypter struct {
	// RandomnessBound is the exclusive upper bound of k.
	RandomnessBound *big.Int
	// AmountBound is the exclusive upper bound of m.
	AmountBound uint64
	// Rand defaults to crypto/rand.
	Rand io.Reader
}

// NewEncrypter returns an Encrypter with explicit bounds.
func NewEncrypter(randomnessBound *big.Int, amountBound uint64) *Encrypter {
	return &Encrypter{RandomnessBound: randomnessBound, AmountBound: amountBound}
}

// Encrypt returns (k·G, m·G + k·pk) for a fresh k in [1, RandomnessBound).
func (e *Encrypter) Encrypt(pk babyjub.Point, m uint64) (*Encryption, error) {
	if m >= e.AmountBound {
		return nil, errors.Wrapf(ErrAmountOutOfRange, "m=%d bound=%d", m, e.AmountBound)
	}
	if _, err := babyjub.NewPoint(pk.X(), pk.Y()); err != nil {
		return nil, err
	}
	k, err := e.sampleK()
	if err != nil {
		return nil, err
	}
	return &Encryption{Ciphertext: EncryptWithK(pk, m, k), K: k}, nil
}

// EncryptWithK is the deterministic core of Encrypt.
func EncryptWithK(pk babyjub.Point, m uint64, k *big.Int) Ciphertext {
	g := babyjub.Base()
	mG := g.ScalarMul(new(big.Int).SetUint64(m))
	return Ciphertext{
		C1: g.ScalarMul(k),
		C2: mG.Add(pk.ScalarMul(k)),
	}
}

func (e *Encrypter) sampleK() (*big.Int, error) {
	bound := e.RandomnessBound
	if bound == nil {
		bound = DefaultRandomnessBound
	}
	if bound.Cmp(big.NewInt(1)) <= 0 {
		return nil, ErrBadRandomnessBound
	}
	r := e.Rand
	if r == nil {
		r = rand.Reader
	}
	k, err := rand.Int(r, new(big.Int).Sub(bound, big.NewInt(1)))
	if err != nil {
		return nil, errors.Wrap(err, "elgamal: sample randomness")
	}
	return k.Add(k, big.NewInt(1)), nil
}

// Decode returns m·G = C2 - sk·C1.
func Decode(sk *big.Int, ct Ciphertext) (babyjub.Point, error) {
	for _, p := range []babyjub.Point{ct.C1, ct.C2} {
		if _, err := babyjub.NewPoint(p.X(), p.Y()); err != nil {
			return babyjub.Point{}, err
		}
	}
	return ct.C2.Sub(ct.C1.ScalarMul(sk)), nil
}

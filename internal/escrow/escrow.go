// escrow.go - Trapdoor escrow of ElGamal randomness (view keys).
//
// The sender encrypts each transfer's k under the auditor's Paillier key.
// The resulting ciphertext is the view key recorded on the ledger; whoever
// holds the factorization of N can open it and recover the transfer amount
// with an escrow-assisted search, without the recipient's private key.

package escrow

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/cronokirby/safenum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/taurusgroup/multi-party-sig/pkg/paillier"
	"github.com/taurusgroup/multi-party-sig/pkg/pool"
)

// SafePrimeBits is the modulus size produced from safe Blum primes.
const SafePrimeBits = 2048

var (
	ErrInsufficientModulus = errors.New("escrow: modulus too small for randomness bound")
	ErrViewKeyInvalid      = errors.New("escrow: malformed view key")
	ErrInvalidFactors      = errors.New("escrow: invalid modulus factorization")
	ErrValueOutOfRange     = errors.New("escrow: value outside plaintext range")
)

// ViewKey is a Paillier ciphertext of a transfer's randomness k.
// It is hex encoded in JSON.
type ViewKey []byte

func (v ViewKey) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(v)), nil
}

func (v *ViewKey) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return errors.Wrap(ErrViewKeyInvalid, err.Error())
	}
	*v = b
	return nil
}

// PublicKey is the public half of the trapdoor key pair.
type PublicKey struct {
	pk *paillier.PublicKey
}

// N returns the modulus.
func (p *PublicKey) N() *big.Int { return p.pk.N().Big() }

// BitLen returns the bit length of the modulus.
func (p *PublicKey) BitLen() int { return p.pk.N().BitLen() }

// SecretKey is the trapdoor key pair: the modulus and its factorization.
type SecretKey struct {
	PublicKey
	sk *paillier.SecretKey
}

func (s *SecretKey) P() *big.Int { return s.sk.P().Big() }
func (s *SecretKey) Q() *big.Int { return s.sk.Q().Big() }

// Public returns the public half.
func (s *SecretKey) Public() *PublicKey { return &s.PublicKey }

func wrap(sk *paillier.SecretKey) *SecretKey {
	return &SecretKey{PublicKey: PublicKey{pk: sk.PublicKey}, sk: sk}
}

// NewSecretKeyFromPrimes rebuilds a key pair from its factors.
// Both factors must be distinct primes of equal bit length.
func NewSecretKeyFromPrimes(p, q *big.Int) (*SecretKey, error) {
	if p == nil || q == nil || p.Sign() <= 0 || q.Sign() <= 0 {
		return nil, ErrInvalidFactors
	}
	if p.Cmp(q) == 0 || p.BitLen() != q.BitLen() {
		return nil, errors.Wrap(ErrInvalidFactors, "factors must be distinct and of equal size")
	}
	if !p.ProbablyPrime(20) || !q.ProbablyPrime(20) {
		return nil, errors.Wrap(ErrInvalidFactors, "factor is not prime")
	}
	natP := new(safenum.Nat).SetBig(p, p.BitLen())
	natQ := new(safenum.Nat).SetBig(q, q.BitLen())
	return wrap(paillier.NewSecretKeyFromPrimes(natP, natQ)), nil
}

// GenerateKey creates a key pair with a modulus of the given size.
// A size of SafePrimeBits uses safe Blum primes sampled on pl; other sizes
// use plain random primes.
func GenerateKey(ctx context.Context, bits int, pl *pool.Pool) (*SecretKey, error) {
	if bits < 16 || bits%2 != 0 {
		return nil, errors.Errorf("escrow: unsupported modulus size %d", bits)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bits == SafePrimeBits {
		log.Debug().Int("bits", bits).Msg("sampling safe primes for trapdoor key")
		return wrap(paillier.NewSecretKey(pl)), nil
	}
	for {
		p, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, errors.Wrap(err, "escrow: sample prime")
		}
		q, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, errors.Wrap(err, "escrow: sample prime")
		}
		if p.Cmp(q) == 0 {
			continue
		}
		if new(big.Int).Mul(p, q).BitLen() != bits {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewSecretKeyFromPrimes(p, q)
	}
}

// CheckMargin fails unless the modulus is at least marginBits wider than
// the largest randomness value below randomnessBound.
func CheckMargin(pk *PublicKey, randomnessBound *big.Int, marginBits int) error {
	need := new(big.Int).Sub(randomnessBound, big.NewInt(1)).BitLen() + marginBits
	if pk.BitLen() < need {
		return errors.Wrapf(ErrInsufficientModulus, "modulus has %d bits, need %d", pk.BitLen(), need)
	}
	return nil
}

// Escrow encrypts k under pk.
func Escrow(pk *PublicKey, k *big.Int) (ViewKey, error) {
	half := new(big.Int).Rsh(pk.N(), 1)
	if k == nil || k.Sign() < 0 || k.Cmp(half) > 0 {
		return nil, ErrValueOutOfRange
	}
	m := new(safenum.Int).SetBig(k, pk.BitLen())
	ct, _ := pk.pk.Enc(m)
	b, err := ct.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "escrow: encode ciphertext")
	}
	return b, nil
}

// Open decrypts a view key.
func Open(sk *SecretKey, vk ViewKey) (*big.Int, error) {
	if len(vk) == 0 {
		return nil, ErrViewKeyInvalid
	}
	ct := new(paillier.Ciphertext)
	if err := ct.UnmarshalBinary(vk); err != nil {
		return nil, errors.Wrap(ErrViewKeyInvalid, err.Error())
	}
	if !sk.pk.ValidateCiphertexts(ct) {
		return nil, ErrViewKeyInvalid
	}
	m, err := sk.sk.Dec(ct)
	if err != nil {
		return nil, errors.Wrap(ErrViewKeyInvalid, err.Error())
	}
	k := m.Big()
	if k.Sign() < 0 {
		return nil, ErrViewKeyInvalid
	}
	return k, nil
}

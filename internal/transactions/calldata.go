// calldata.go - ABI encoding of proofs and transfer bundles.
//
// The ledger receives one bytes argument per private transfer. Its layout
// depends on the kind:
//
//	pub2priv, priv2pub: tuple(uint256[2] C1, uint256[2] C2, bytes viewKey, bytes proof)
//	priv2priv:          tuple(uint256[2] fromC1, uint256[2] fromC2, uint256[2] toC1,
//	                          uint256[2] toC2, bytes fromViewKey, bytes toViewKey, bytes proof)
//
// and proof is itself tuple(uint256[2] pA, uint256[2][2] pB, uint256[2] pC, uint256[] pubSignals).
//
// View keys are bytes rather than uint256 on purpose: a Paillier ciphertext
// under a 2048-bit modulus is 4096 bits wide.

package transactions

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
	"axiompay/internal/escrow"
)

// ErrMalformedCalldata is returned when call data cannot be decoded.
var ErrMalformedCalldata = errors.New("transactions: malformed call data")

// ProofCalldata is a Groth16 proof in verifier-contract layout.
type ProofCalldata struct {
	PA         [2]*big.Int
	PB         [2][2]*big.Int
	PC         [2]*big.Int
	PubSignals []*big.Int
}

// Envelope holds the amount ciphertexts and view keys of one transfer.
// pub2priv fills To, priv2pub fills From, priv2priv fills both.
type Envelope struct {
	From        *elgamal.Ciphertext `json:"from,omitempty"`
	To          *elgamal.Ciphertext `json:"to,omitempty"`
	FromViewKey escrow.ViewKey      `json:"fromViewKey,omitempty"`
	ToViewKey   escrow.ViewKey      `json:"toViewKey,omitempty"`
}

type twoPartyBundle struct {
	C1      [2]*big.Int
	C2      [2]*big.Int
	ViewKey []byte
	Proof   []byte
}

type privateBundle struct {
	FromC1      [2]*big.Int
	FromC2      [2]*big.Int
	ToC1        [2]*big.Int
	ToC2        [2]*big.Int
	FromViewKey []byte
	ToViewKey   []byte
	Proof       []byte
}

var (
	proofArgs    = mustArgs([]abi.ArgumentMarshaling{{Name: "pA", Type: "uint256[2]"}, {Name: "pB", Type: "uint256[2][2]"}, {Name: "pC", Type: "uint256[2]"}, {Name: "pubSignals", Type: "uint256[]"}})
	twoPartyArgs = mustArgs([]abi.ArgumentMarshaling{{Name: "C1", Type: "uint256[2]"}, {Name: "C2", Type: "uint256[2]"}, {Name: "viewKey", Type: "bytes"}, {Name: "proof", Type: "bytes"}})
	privateArgs  = mustArgs([]abi.ArgumentMarshaling{
		{Name: "fromC1", Type: "uint256[2]"}, {Name: "fromC2", Type: "uint256[2]"},
		{Name: "toC1", Type: "uint256[2]"}, {Name: "toC2", Type: "uint256[2]"},
		{Name: "fromViewKey", Type: "bytes"}, {Name: "toViewKey", Type: "bytes"},
		{Name: "proof", Type: "bytes"},
	})
)

func mustArgs(components []abi.ArgumentMarshaling) abi.Arguments {
	t, err := abi.NewType("tuple", "", components)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}

// Pack ABI-encodes the proof.
func (p *ProofCalldata) Pack() ([]byte, error) {
	b, err := proofArgs.Pack(p)
	return b, errors.Wrap(err, "transactions: pack proof")
}

// UnpackProof decodes a value produced by Pack.
func UnpackProof(data []byte) (*ProofCalldata, error) {
	out, err := proofArgs.Unpack(data)
	if err != nil || len(out) != 1 {
		return nil, errors.Wrap(ErrMalformedCalldata, "proof")
	}
	p := abi.ConvertType(out[0], new(ProofCalldata)).(*ProofCalldata)
	return p, nil
}

// EncodeBundle builds the call data of a transfer of the given kind.
func EncodeBundle(kind Kind, env *Envelope, proof []byte) ([]byte, error) {
	switch kind {
	case Pub2Priv, Priv2Pub:
		ct, vk := env.To, env.ToViewKey
		if kind == Priv2Pub {
			ct, vk = env.From, env.FromViewKey
		}
		if ct == nil || len(vk) == 0 {
			return nil, errors.Wrapf(ErrTxTypeNotSupported, "%s envelope is incomplete", kind)
		}
		b, err := twoPartyArgs.Pack(&twoPartyBundle{
			C1: PointWords(ct.C1), C2: PointWords(ct.C2), ViewKey: vk, Proof: proof,
		})
		return b, errors.Wrap(err, "transactions: pack bundle")
	case Priv2Priv:
		if env.From == nil || env.To == nil || len(env.FromViewKey) == 0 || len(env.ToViewKey) == 0 {
			return nil, errors.Wrapf(ErrTxTypeNotSupported, "%s envelope is incomplete", kind)
		}
		b, err := privateArgs.Pack(&privateBundle{
			FromC1: PointWords(env.From.C1), FromC2: PointWords(env.From.C2),
			ToC1: PointWords(env.To.C1), ToC2: PointWords(env.To.C2),
			FromViewKey: env.FromViewKey, ToViewKey: env.ToViewKey,
			Proof: proof,
		})
		return b, errors.Wrap(err, "transactions: pack bundle")
	}
	return nil, errors.Wrapf(ErrTxTypeNotSupported, "kind %q", kind)
}

// DecodeBundle is the inverse of EncodeBundle. Points are checked to lie on the curve.
func DecodeBundle(kind Kind, data []byte) (*Envelope, []byte, error) {
	switch kind {
	case Pub2Priv, Priv2Pub:
		out, err := twoPartyArgs.Unpack(data)
		if err != nil || len(out) != 1 {
			return nil, nil, errors.Wrap(ErrMalformedCalldata, "bundle")
		}
		b := abi.ConvertType(out[0], new(twoPartyBundle)).(*twoPartyBundle)
		ct, err := ciphertextFromWords(b.C1, b.C2)
		if err != nil {
			return nil, nil, err
		}
		env := &Envelope{}
		if kind == Pub2Priv {
			env.To, env.ToViewKey = ct, b.ViewKey
		} else {
			env.From, env.FromViewKey = ct, b.ViewKey
		}
		return env, b.Proof, nil
	case Priv2Priv:
		out, err := privateArgs.Unpack(data)
		if err != nil || len(out) != 1 {
			return nil, nil, errors.Wrap(ErrMalformedCalldata, "bundle")
		}
		b := abi.ConvertType(out[0], new(privateBundle)).(*privateBundle)
		from, err := ciphertextFromWords(b.FromC1, b.FromC2)
		if err != nil {
			return nil, nil, err
		}
		to, err := ciphertextFromWords(b.ToC1, b.ToC2)
		if err != nil {
			return nil, nil, err
		}
		return &Envelope{From: from, To: to, FromViewKey: b.FromViewKey, ToViewKey: b.ToViewKey}, b.Proof, nil
	}
	return nil, nil, errors.Wrapf(ErrTxTypeNotSupported, "kind %q", kind)
}

// PointWords returns the coordinates of p as ABI words.
func PointWords(p babyjub.Point) [2]*big.Int {
	return [2]*big.Int{p.X(), p.Y()}
}

func ciphertextFromWords(c1, c2 [2]*big.Int) (*elgamal.Ciphertext, error) {
	p1, err := babyjub.NewPoint(c1[0], c1[1])
	if err != nil {
		return nil, errors.Wrap(err, "C1")
	}
	p2, err := babyjub.NewPoint(c2[0], c2[1])
	if err != nil {
		return nil, errors.Wrap(err, "C2")
	}
	return &elgamal.Ciphertext{C1: p1, C2: p2}, nil
}

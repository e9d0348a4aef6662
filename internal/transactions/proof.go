package transactions

import (
	"math/big"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/backend/witness"
	"github.com/pkg/errors"
)

// ErrInvalidProofPoint is returned for proof points that are not on the curve.
var ErrInvalidProofPoint = errors.New("transactions: proof point not on curve")

// NewProofCalldata converts a BN254 Groth16 proof and public witness into
// verifier-contract layout. G2 coordinates are written imaginary part first.
func NewProofCalldata(proof groth16.Proof, public witness.Witness) (*ProofCalldata, error) {
	p, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, errors.Errorf("transactions: unsupported proof type %T", proof)
	}
	signals, err := PublicSignals(public)
	if err != nil {
		return nil, err
	}
	return &ProofCalldata{
		PA: [2]*big.Int{p.Ar.X.BigInt(new(big.Int)), p.Ar.Y.BigInt(new(big.Int))},
		PB: [2][2]*big.Int{
			{p.Bs.X.A1.BigInt(new(big.Int)), p.Bs.X.A0.BigInt(new(big.Int))},
			{p.Bs.Y.A1.BigInt(new(big.Int)), p.Bs.Y.A0.BigInt(new(big.Int))},
		},
		PC:         [2]*big.Int{p.Krs.X.BigInt(new(big.Int)), p.Krs.Y.BigInt(new(big.Int))},
		PubSignals: signals,
	}, nil
}

// PublicSignals returns the public witness values in circuit order.
func PublicSignals(public witness.Witness) ([]*big.Int, error) {
	vec, ok := public.Vector().(fr.Vector)
	if !ok {
		return nil, errors.Errorf("transactions: unsupported witness vector %T", public.Vector())
	}
	out := make([]*big.Int, len(vec))
	for i := range vec {
		out[i] = vec[i].BigInt(new(big.Int))
	}
	return out, nil
}

// Proof rebuilds the Groth16 proof object.
func (c *ProofCalldata) Proof() (groth16.Proof, error) {
	for _, v := range []*big.Int{c.PA[0], c.PA[1], c.PC[0], c.PC[1], c.PB[0][0], c.PB[0][1], c.PB[1][0], c.PB[1][1]} {
		if v == nil {
			return nil, ErrInvalidProofPoint
		}
	}
	var ar, krs bn254.G1Affine
	ar.X.SetBigInt(c.PA[0])
	ar.Y.SetBigInt(c.PA[1])
	krs.X.SetBigInt(c.PC[0])
	krs.Y.SetBigInt(c.PC[1])

	var bs bn254.G2Affine
	bs.X.A1.SetBigInt(c.PB[0][0])
	bs.X.A0.SetBigInt(c.PB[0][1])
	bs.Y.A1.SetBigInt(c.PB[1][0])
	bs.Y.A0.SetBigInt(c.PB[1][1])

	if !ar.IsOnCurve() || !krs.IsOnCurve() || !bs.IsOnCurve() {
		return nil, ErrInvalidProofPoint
	}
	return &groth16_bn254.Proof{Ar: ar, Bs: bs, Krs: krs}, nil
}

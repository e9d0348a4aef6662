package pipeline

import (
	"math/big"

	"github.com/pkg/errors"

	"axiompay/internal/transactions"
)

// snarkProof is the proof.json layout shared with snarkjs tooling.
// G2 coordinates are real part first here and swapped in call data.
type snarkProof struct {
	PiA      [3]string    `json:"pi_a"`
	PiB      [3][2]string `json:"pi_b"`
	PiC      [3]string    `json:"pi_c"`
	Protocol string       `json:"protocol"`
	Curve    string       `json:"curve"`
}

func newSnarkProof(cd *transactions.ProofCalldata) snarkProof {
	return snarkProof{
		PiA: [3]string{cd.PA[0].String(), cd.PA[1].String(), "1"},
		PiB: [3][2]string{
			{cd.PB[0][1].String(), cd.PB[0][0].String()},
			{cd.PB[1][1].String(), cd.PB[1][0].String()},
			{"1", "0"},
		},
		PiC:      [3]string{cd.PC[0].String(), cd.PC[1].String(), "1"},
		Protocol: "groth16",
		Curve:    "bn128",
	}
}

func (sp snarkProof) calldata(public []string) (*transactions.ProofCalldata, error) {
	var firstErr error
	num := func(s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok && firstErr == nil {
			firstErr = errors.Errorf("malformed decimal %q in proof artifact", s)
		}
		return v
	}
	cd := &transactions.ProofCalldata{
		PA: [2]*big.Int{num(sp.PiA[0]), num(sp.PiA[1])},
		PB: [2][2]*big.Int{
			{num(sp.PiB[0][1]), num(sp.PiB[0][0])},
			{num(sp.PiB[1][1]), num(sp.PiB[1][0])},
		},
		PC:         [2]*big.Int{num(sp.PiC[0]), num(sp.PiC[1])},
		PubSignals: make([]*big.Int, len(public)),
	}
	for i, s := range public {
		cd.PubSignals[i] = num(s)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return cd, nil
}

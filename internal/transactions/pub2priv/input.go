// Package pub2priv moves value from a public balance into a private one.
package pub2priv

import (
	"encoding/json"

	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
	"axiompay/internal/field"
	"axiompay/internal/transactions"
)

// Input is the pub2priv circuit input document.
type Input struct {
	Pb         babyjub.Point `json:"pb"`
	CbAmountK  field.Scalar  `json:"cbAmountK"`
	C1byAmount field.Scalar  `json:"c1byAmount"`
	C2byAmount field.Scalar  `json:"c2byAmount"`
	Balance    field.Scalar  `json:"balance"`
	Amount     field.Scalar  `json:"amount"`
}

// Definition registers the kind with the proof pipeline.
var Definition = transactions.Definition{
	Kind:        transactions.Pub2Priv,
	NewCircuit:  func() frontend.Circuit { return new(Circuit) },
	DecodeInput: Decode,
}

// Build assembles the input from the recipient key and the amount encryption.
// balance is the recipient's current private balance.
func Build(pb babyjub.Point, to *elgamal.Encryption, balance, amount uint64) (*Input, error) {
	if to == nil || to.K == nil {
		return nil, errors.New("pub2priv: missing recipient encryption")
	}
	k, err := field.New(to.K)
	if err != nil {
		return nil, errors.Wrap(err, "pub2priv: randomness")
	}
	return &Input{
		Pb:         pb,
		CbAmountK:  k,
		C1byAmount: field.MustNew(to.C1.Y()),
		C2byAmount: field.MustNew(to.C2.Y()),
		Balance:    field.FromUint64(balance),
		Amount:     field.FromUint64(amount),
	}, nil
}

// Decode parses an input document.
func Decode(data []byte) (transactions.Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "pub2priv: decode input")
	}
	return &in, nil
}

func (in *Input) Kind() transactions.Kind { return transactions.Pub2Priv }

func (in *Input) Assignment() frontend.Circuit {
	return &Circuit{
		Pb:         transactions.CircuitPoint(in.Pb),
		C1byAmount: in.C1byAmount.Big(),
		C2byAmount: in.C2byAmount.Big(),
		Amount:     in.Amount.Big(),
		CbAmountK:  in.CbAmountK.Big(),
		Balance:    in.Balance.Big(),
	}
}

// PublicAssignment is the public part of the witness as the ledger sees it.
func PublicAssignment(pb babyjub.Point, to elgamal.Ciphertext, amount uint64) frontend.Circuit {
	return &Circuit{
		Pb:         transactions.CircuitPoint(pb),
		C1byAmount: to.C1.Y(),
		C2byAmount: to.C2.Y(),
		Amount:     amount,
	}
}

// Package priv2pub moves value from a private balance back to a public one.
package priv2pub

import (
	"encoding/json"

	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
	"axiompay/internal/field"
	"axiompay/internal/transactions"
)

// Input is the priv2pub circuit input document.
type Input struct {
	Pa         babyjub.Point `json:"pa"`
	CaAmountK  field.Scalar  `json:"caAmountK"`
	C1ayAmount field.Scalar  `json:"c1ayAmount"`
	C2ayAmount field.Scalar  `json:"c2ayAmount"`
	C1Balance  babyjub.Point `json:"c1balance"`
	C2Balance  babyjub.Point `json:"c2balance"`
	PrivateKey field.Scalar  `json:"privateKey"`
	Balance    field.Scalar  `json:"balance"`
	Amount     field.Scalar  `json:"amount"`
}

// Definition registers the kind with the proof pipeline.
var Definition = transactions.Definition{
	Kind:        transactions.Priv2Pub,
	NewCircuit:  func() frontend.Circuit { return new(Circuit) },
	DecodeInput: Decode,
}

// Params are the values a private to public transfer is built from.
type Params struct {
	Sender         *babyjub.KeyPair
	SenderBalance  elgamal.Ciphertext
	Balance        uint64
	Amount         uint64
	FromEncryption *elgamal.Encryption
}

// Build assembles the input document.
func Build(p Params) (*Input, error) {
	if p.Sender == nil {
		return nil, errors.New("priv2pub: missing sender key")
	}
	if p.FromEncryption == nil || p.FromEncryption.K == nil {
		return nil, errors.New("priv2pub: missing amount encryption")
	}
	k, err := field.New(p.FromEncryption.K)
	if err != nil {
		return nil, errors.Wrap(err, "priv2pub: randomness")
	}
	return &Input{
		Pa:         p.Sender.Public,
		CaAmountK:  k,
		C1ayAmount: field.MustNew(p.FromEncryption.C1.Y()),
		C2ayAmount: field.MustNew(p.FromEncryption.C2.Y()),
		C1Balance:  p.SenderBalance.C1,
		C2Balance:  p.SenderBalance.C2,
		PrivateKey: field.MustNew(p.Sender.Private),
		Balance:    field.FromUint64(p.Balance),
		Amount:     field.FromUint64(p.Amount),
	}, nil
}

// Decode parses an input document.
func Decode(data []byte) (transactions.Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "priv2pub: decode input")
	}
	return &in, nil
}

func (in *Input) Kind() transactions.Kind { return transactions.Priv2Pub }

func (in *Input) Assignment() frontend.Circuit {
	return &Circuit{
		Pa:         transactions.CircuitPoint(in.Pa),
		C1ayAmount: in.C1ayAmount.Big(),
		C2ayAmount: in.C2ayAmount.Big(),
		C1Balance:  transactions.CircuitPoint(in.C1Balance),
		C2Balance:  transactions.CircuitPoint(in.C2Balance),
		Amount:     in.Amount.Big(),
		CaAmountK:  in.CaAmountK.Big(),
		PrivateKey: in.PrivateKey.Big(),
		Balance:    in.Balance.Big(),
	}
}

// PublicAssignment is the public part of the witness as the ledger sees it.
func PublicAssignment(pa babyjub.Point, from, balance elgamal.Ciphertext, amount uint64) frontend.Circuit {
	return &Circuit{
		Pa:         transactions.CircuitPoint(pa),
		C1ayAmount: from.C1.Y(),
		C2ayAmount: from.C2.Y(),
		C1Balance:  transactions.CircuitPoint(balance.C1),
		C2Balance:  transactions.CircuitPoint(balance.C2),
		Amount:     amount,
	}
}

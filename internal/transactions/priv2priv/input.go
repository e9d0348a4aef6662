// Package priv2priv moves value between two private balances.
package priv2priv

import (
	"encoding/json"

	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
	"axiompay/internal/field"
	"axiompay/internal/transactions"
)

// Input is the priv2priv circuit input document.
type Input struct {
	Pa         babyjub.Point `json:"pa"`
	Pb         babyjub.Point `json:"pb"`
	CaAmountK  field.Scalar  `json:"caAmountK"`
	CbAmountK  field.Scalar  `json:"cbAmountK"`
	C1ayAmount field.Scalar  `json:"c1ayAmount"`
	C1byAmount field.Scalar  `json:"c1byAmount"`
	C2ayAmount field.Scalar  `json:"c2ayAmount"`
	C2byAmount field.Scalar  `json:"c2byAmount"`
	C1Balance  babyjub.Point `json:"c1balance"`
	C2Balance  babyjub.Point `json:"c2balance"`
	PrivateKey field.Scalar  `json:"privateKey"`
	Balance    field.Scalar  `json:"balance"`
	Amount     field.Scalar  `json:"amount"`
}

// Definition registers the kind with the proof pipeline.
var Definition = transactions.Definition{
	Kind:        transactions.Priv2Priv,
	NewCircuit:  func() frontend.Circuit { return new(Circuit) },
	DecodeInput: Decode,
}

// Params are the values a private to private transfer is built from.
type Params struct {
	Sender         *babyjub.KeyPair
	Recipient      babyjub.Point
	SenderBalance  elgamal.Ciphertext
	Balance        uint64
	Amount         uint64
	FromEncryption *elgamal.Encryption
	ToEncryption   *elgamal.Encryption
}

// Build assembles the input document.
func Build(p Params) (*Input, error) {
	if p.Sender == nil {
		return nil, errors.New("priv2priv: missing sender key")
	}
	if p.FromEncryption == nil || p.FromEncryption.K == nil || p.ToEncryption == nil || p.ToEncryption.K == nil {
		return nil, errors.New("priv2priv: missing amount encryption")
	}
	ka, err := field.New(p.FromEncryption.K)
	if err != nil {
		return nil, errors.Wrap(err, "priv2priv: sender randomness")
	}
	kb, err := field.New(p.ToEncryption.K)
	if err != nil {
		return nil, errors.Wrap(err, "priv2priv: recipient randomness")
	}
	return &Input{
		Pa:         p.Sender.Public,
		Pb:         p.Recipient,
		CaAmountK:  ka,
		CbAmountK:  kb,
		C1ayAmount: y(p.FromEncryption.C1),
		C1byAmount: y(p.ToEncryption.C1),
		C2ayAmount: y(p.FromEncryption.C2),
		C2byAmount: y(p.ToEncryption.C2),
		C1Balance:  p.SenderBalance.C1,
		C2Balance:  p.SenderBalance.C2,
		PrivateKey: field.MustNew(p.Sender.Private),
		Balance:    field.FromUint64(p.Balance),
		Amount:     field.FromUint64(p.Amount),
	}, nil
}

func y(p babyjub.Point) field.Scalar { return field.MustNew(p.Y()) }

// Decode parses an input document.
func Decode(data []byte) (transactions.Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "priv2priv: decode input")
	}
	return &in, nil
}

func (in *Input) Kind() transactions.Kind { return transactions.Priv2Priv }

func (in *Input) Assignment() frontend.Circuit {
	return &Circuit{
		Pa:         transactions.CircuitPoint(in.Pa),
		Pb:         transactions.CircuitPoint(in.Pb),
		C1ayAmount: in.C1ayAmount.Big(),
		C1byAmount: in.C1byAmount.Big(),
		C2ayAmount: in.C2ayAmount.Big(),
		C2byAmount: in.C2byAmount.Big(),
		C1Balance:  transactions.CircuitPoint(in.C1Balance),
		C2Balance:  transactions.CircuitPoint(in.C2Balance),
		CaAmountK:  in.CaAmountK.Big(),
		CbAmountK:  in.CbAmountK.Big(),
		PrivateKey: in.PrivateKey.Big(),
		Balance:    in.Balance.Big(),
		Amount:     in.Amount.Big(),
	}
}

// PublicAssignment is the public part of the witness as the ledger sees it.
func PublicAssignment(pa, pb babyjub.Point, from, to, balance elgamal.Ciphertext) frontend.Circuit {
	return &Circuit{
		Pa:         transactions.CircuitPoint(pa),
		Pb:         transactions.CircuitPoint(pb),
		C1ayAmount: from.C1.Y(),
		C1byAmount: to.C1.Y(),
		C2ayAmount: from.C2.Y(),
		C2byAmount: to.C2.Y(),
		C1Balance:  transactions.CircuitPoint(balance.C1),
		C2Balance:  transactions.CircuitPoint(balance.C2),
	}
}

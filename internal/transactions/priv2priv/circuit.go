package priv2priv

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"axiompay/internal/transactions"
)

// Circuit proves that the sender owns a balance of at least Amount and that
// the same Amount is encrypted once to the sender (debit) and once to the
// recipient (credit).
type Circuit struct {
	// Public
	Pa         twistededwards.Point `gnark:",public"`
	Pb         twistededwards.Point `gnark:",public"`
	C1ayAmount frontend.Variable    `gnark:",public"`
	C1byAmount frontend.Variable    `gnark:",public"`
	C2ayAmount frontend.Variable    `gnark:",public"`
	C2byAmount frontend.Variable    `gnark:",public"`
	C1Balance  twistededwards.Point `gnark:",public"`
	C2Balance  twistededwards.Point `gnark:",public"`

	// Private
	CaAmountK  frontend.Variable
	CbAmountK  frontend.Variable
	PrivateKey frontend.Variable
	Balance    frontend.Variable
	Amount     frontend.Variable
}

func (c *Circuit) Define(api frontend.API) error {
	curve, err := transactions.NewCurve(api)
	if err != nil {
		return err
	}
	curve.AssertIsOnCurve(c.Pa)
	curve.AssertIsOnCurve(c.Pb)
	curve.AssertIsOnCurve(c.C1Balance)
	curve.AssertIsOnCurve(c.C2Balance)

	// (1) Sender owns Pa and its encrypted balance is Balance
	transactions.AssertOwnsBalance(curve, c.Pa, c.C1Balance, c.C2Balance, c.PrivateKey, c.Balance)

	// (2) Debit and credit ciphertexts carry the same Amount
	transactions.AssertEncryption(curve, c.Pa, c.Amount, c.CaAmountK, c.C1ayAmount, c.C2ayAmount)
	transactions.AssertEncryption(curve, c.Pb, c.Amount, c.CbAmountK, c.C1byAmount, c.C2byAmount)

	// (3) No underflow
	transactions.AssertAmount(api, c.Amount)
	transactions.AssertAmount(api, c.Balance)
	transactions.AssertAmount(api, api.Sub(c.Balance, c.Amount))
	return nil
}

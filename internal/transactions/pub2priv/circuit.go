package pub2priv

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"axiompay/internal/transactions"
)

// Circuit proves that a public deposit of Amount is encrypted to the
// recipient key Pb with randomness CbAmountK.
type Circuit struct {
	// Public
	Pb         twistededwards.Point `gnark:",public"`
	C1byAmount frontend.Variable    `gnark:",public"`
	C2byAmount frontend.Variable    `gnark:",public"`
	Amount     frontend.Variable    `gnark:",public"`

	// Private
	CbAmountK frontend.Variable
	Balance   frontend.Variable
}

func (c *Circuit) Define(api frontend.API) error {
	curve, err := transactions.NewCurve(api)
	if err != nil {
		return err
	}
	curve.AssertIsOnCurve(c.Pb)

	// (1) Amount ciphertext under the recipient key
	transactions.AssertEncryption(curve, c.Pb, c.Amount, c.CbAmountK, c.C1byAmount, c.C2byAmount)

	// (2) Recipient balance stays in the recoverable range
	transactions.AssertAmount(api, c.Amount)
	transactions.AssertAmount(api, c.Balance)
	transactions.AssertAmount(api, api.Add(c.Balance, c.Amount))
	return nil
}

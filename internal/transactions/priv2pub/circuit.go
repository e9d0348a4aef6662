package priv2pub

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"axiompay/internal/transactions"
)

// Circuit proves that the sender owns a balance of at least Amount and that
// Amount is encrypted to the sender as the debit of a public withdrawal.
type Circuit struct {
	// Public
	Pa         twistededwards.Point `gnark:",public"`
	C1ayAmount frontend.Variable    `gnark:",public"`
	C2ayAmount frontend.Variable    `gnark:",public"`
	C1Balance  twistededwards.Point `gnark:",public"`
	C2Balance  twistededwards.Point `gnark:",public"`
	Amount     frontend.Variable    `gnark:",public"`

	// Private
	CaAmountK  frontend.Variable
	PrivateKey frontend.Variable
	Balance    frontend.Variable
}

func (c *Circuit) Define(api frontend.API) error {
	curve, err := transactions.NewCurve(api)
	if err != nil {
		return err
	}
	curve.AssertIsOnCurve(c.Pa)
	curve.AssertIsOnCurve(c.C1Balance)
	curve.AssertIsOnCurve(c.C2Balance)

	transactions.AssertOwnsBalance(curve, c.Pa, c.C1Balance, c.C2Balance, c.PrivateKey, c.Balance)
	transactions.AssertEncryption(curve, c.Pa, c.Amount, c.CaAmountK, c.C1ayAmount, c.C2ayAmount)

	transactions.AssertAmount(api, c.Amount)
	transactions.AssertAmount(api, c.Balance)
	transactions.AssertAmount(api, api.Sub(c.Balance, c.Amount))
	return nil
}

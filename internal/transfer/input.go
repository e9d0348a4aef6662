package transfer

import (
	"github.com/pkg/errors"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
	"axiompay/internal/transactions"
	"axiompay/internal/transactions/priv2priv"
	"axiompay/internal/transactions/priv2pub"
	"axiompay/internal/transactions/pub2priv"
)

// Definitions returns the pipeline definitions of every transfer kind.
func Definitions() []transactions.Definition {
	return []transactions.Definition{pub2priv.Definition, priv2priv.Definition, priv2pub.Definition}
}

// Material is everything a proof input may be built from. Which fields are
// required depends on the kind.
type Material struct {
	Sender         *babyjub.KeyPair
	SenderBalance  *elgamal.Ciphertext
	Recipient      *babyjub.Point
	Balance        uint64
	Amount         uint64
	FromEncryption *elgamal.Encryption
	ToEncryption   *elgamal.Encryption
}

func shapeError(kind transactions.Kind, msg string) error {
	return errors.Wrapf(transactions.ErrTxTypeNotSupported, "%s: %s", kind, msg)
}

// BuildInput dispatches to the builder of kind. Material carrying a side
// the kind does not have, or missing one it needs, is rejected.
func BuildInput(kind transactions.Kind, m Material) (transactions.Input, error) {
	hasSender := m.Sender != nil || m.SenderBalance != nil || m.FromEncryption != nil
	hasRecipient := m.Recipient != nil || m.ToEncryption != nil

	switch kind {
	case transactions.Pub2Priv:
		if hasSender {
			return nil, shapeError(kind, "public sender carries private material")
		}
		if m.Recipient == nil || m.ToEncryption == nil {
			return nil, shapeError(kind, "recipient material missing")
		}
		in, err := pub2priv.Build(*m.Recipient, m.ToEncryption, m.Balance, m.Amount)
		if err != nil {
			return nil, err
		}
		return in, nil

	case transactions.Priv2Priv:
		if m.Sender == nil || m.SenderBalance == nil || m.FromEncryption == nil {
			return nil, shapeError(kind, "sender material missing")
		}
		if m.Recipient == nil || m.ToEncryption == nil {
			return nil, shapeError(kind, "recipient material missing")
		}
		in, err := priv2priv.Build(priv2priv.Params{
			Sender:         m.Sender,
			Recipient:      *m.Recipient,
			SenderBalance:  *m.SenderBalance,
			Balance:        m.Balance,
			Amount:         m.Amount,
			FromEncryption: m.FromEncryption,
			ToEncryption:   m.ToEncryption,
		})
		if err != nil {
			return nil, err
		}
		return in, nil

	case transactions.Priv2Pub:
		if hasRecipient {
			return nil, shapeError(kind, "public recipient carries private material")
		}
		if m.Sender == nil || m.SenderBalance == nil || m.FromEncryption == nil {
			return nil, shapeError(kind, "sender material missing")
		}
		in, err := priv2pub.Build(priv2pub.Params{
			Sender:         m.Sender,
			SenderBalance:  *m.SenderBalance,
			Balance:        m.Balance,
			Amount:         m.Amount,
			FromEncryption: m.FromEncryption,
		})
		if err != nil {
			return nil, err
		}
		return in, nil
	}
	return nil, errors.Wrapf(transactions.ErrTxTypeNotSupported, "kind %q", kind)
}

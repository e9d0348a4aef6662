// Package transactions defines the three confidential transfer kinds, the
// circuit input documents they share, and the ledger call data they produce.
//
// Each kind lives in its own subpackage with its circuit and input builder:
//
//	pub2priv   public balance  -> private balance
//	priv2priv  private balance -> private balance
//	priv2pub   private balance -> public balance
package transactions

import (
	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"
)

// ErrTxTypeNotSupported is returned for privacy pairings with no circuit.
var ErrTxTypeNotSupported = errors.New("transactions: transfer type not supported")

// Kind identifies a circuit variant.
type Kind string

const (
	Pub2Priv  Kind = "pub2priv"
	Priv2Priv Kind = "priv2priv"
	Priv2Pub  Kind = "priv2pub"
)

// Kinds lists every supported kind.
var Kinds = []Kind{Pub2Priv, Priv2Priv, Priv2Pub}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case Pub2Priv, Priv2Priv, Priv2Pub:
		return true
	}
	return false
}

// ParseKind converts a name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", errors.Wrapf(ErrTxTypeNotSupported, "unknown kind %q", s)
	}
	return k, nil
}

// Classify maps the privacy state of sender and recipient to a kind.
// Public to public transfers do not go through a circuit.
func Classify(fromPrivate, toPrivate bool) (Kind, error) {
	switch {
	case !fromPrivate && toPrivate:
		return Pub2Priv, nil
	case fromPrivate && toPrivate:
		return Priv2Priv, nil
	case fromPrivate && !toPrivate:
		return Priv2Pub, nil
	}
	return "", ErrTxTypeNotSupported
}

// Input is a circuit input document for one kind.
type Input interface {
	Kind() Kind
	// Assignment returns the full witness assignment for the circuit.
	Assignment() frontend.Circuit
}

// Definition binds a kind to its circuit and input decoder.
type Definition struct {
	Kind Kind
	// NewCircuit returns an empty circuit for compilation.
	NewCircuit func() frontend.Circuit
	// DecodeInput parses an input document written by the kind's builder.
	DecodeInput func(data []byte) (Input, error)
}

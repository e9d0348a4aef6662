package babyjub

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

// KeyPair is an account key: a private scalar in [1, order) and its public point.
type KeyPair struct {
	Private *big.Int
	Public  Point
}

// GenerateKeyPair draws a private scalar uniformly in [1, order).
// A nil reader defaults to crypto/rand.
func GenerateKeyPair(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	max := new(big.Int).Sub(&curve.Order, big.NewInt(1))
	sk, err := rand.Int(r, max)
	if err != nil {
		return nil, errors.Wrap(err, "babyjub: sample private key")
	}
	sk.Add(sk, big.NewInt(1))
	return NewKeyPair(sk)
}

// NewKeyPair derives the public point of sk.
func NewKeyPair(sk *big.Int) (*KeyPair, error) {
	if sk == nil || sk.Sign() <= 0 || sk.Cmp(&curve.Order) >= 0 {
		return nil, errors.New("babyjub: private key out of range")
	}
	return &KeyPair{
		Private: new(big.Int).Set(sk),
		Public:  Base().ScalarMul(sk),
	}, nil
}

type keyPairJSON struct {
	PrivateKey string `json:"privateKey"`
	PublicKey  Point  `json:"publicKey"`
}

func (k KeyPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyPairJSON{PrivateKey: k.Private.String(), PublicKey: k.Public})
}

// UnmarshalJSON decodes a key pair and checks that the public point matches.
func (k *KeyPair) UnmarshalJSON(data []byte) error {
	var raw keyPairJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "babyjub: decode key pair")
	}
	sk, ok := new(big.Int).SetString(raw.PrivateKey, 10)
	if !ok {
		return errors.New("babyjub: malformed private key")
	}
	kp, err := NewKeyPair(sk)
	if err != nil {
		return err
	}
	if !kp.Public.Equal(raw.PublicKey) {
		return errors.New("babyjub: public key does not match private key")
	}
	*k = *kp
	return nil
}

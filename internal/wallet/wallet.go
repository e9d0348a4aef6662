// wallet.go - Account key pairs, one JSON file per account holder.
//
// A wallet binds a ledger address to the Baby Jubjub key pair registered for
// it in the address book. The private key never leaves the file; only the
// packed public key is handed to the ledger.

package wallet

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"axiompay/internal/babyjub"
)

const suffix = "_wallet.json"

var (
	ErrWalletExists   = errors.New("wallet: already exists")
	ErrWalletNotFound = errors.New("wallet: not found")
)

// Wallet is one account holder's key material.
type Wallet struct {
	Name    string           `json:"name"`
	Address common.Address   `json:"address"`
	Keys    *babyjub.KeyPair `json:"keys"`
	Created time.Time        `json:"created"`
}

// New creates a wallet with a fresh key pair drawn from r (crypto/rand when nil).
func New(name string, addr common.Address, r io.Reader) (*Wallet, error) {
	kp, err := babyjub.GenerateKeyPair(r)
	if err != nil {
		return nil, err
	}
	return &Wallet{Name: name, Address: addr, Keys: kp, Created: time.Now().UTC()}, nil
}

// PackedPublicKey is the form registered in the ledger address book.
func (w *Wallet) PackedPublicKey() string {
	return w.Keys.Public.Pack()
}

// LoadWallet loads a wallet from a JSON file.
func LoadWallet(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrWalletNotFound, path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read wallet")
	}
	var w Wallet
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.Wrapf(err, "decode wallet %s", path)
	}
	if w.Keys == nil {
		return nil, errors.Errorf("wallet %s has no keys", path)
	}
	return &w, nil
}

// Save writes the wallet to path, readable by the owner only.
func (w *Wallet) Save(path string) error {
	raw, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode wallet")
	}
	return errors.Wrap(os.WriteFile(path, raw, 0o600), "write wallet")
}

// Store keeps wallets as <dir>/<name>_wallet.json.
type Store struct {
	Dir string
}

func (s Store) path(name string) string {
	return filepath.Join(s.Dir, name+suffix)
}

// Create generates and saves a new wallet. Existing wallets are never overwritten.
func (s Store) Create(name string, addr common.Address) (*Wallet, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, errors.Errorf("wallet: invalid name %q", name)
	}
	if _, err := os.Stat(s.path(name)); err == nil {
		return nil, errors.Wrap(ErrWalletExists, name)
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create wallet directory")
	}
	w, err := New(name, addr, nil)
	if err != nil {
		return nil, err
	}
	return w, w.Save(s.path(name))
}

func (s Store) Load(name string) (*Wallet, error) {
	return LoadWallet(s.path(name))
}

// List returns the names of all stored wallets, sorted.
func (s Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list wallets")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, strings.TrimSuffix(e.Name(), suffix))
		}
	}
	sort.Strings(names)
	return names, nil
}

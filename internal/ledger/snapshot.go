package ledger

import (
	"encoding/json"
	"os"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"axiompay/internal/elgamal"
	"axiompay/internal/fixedpoint"
	"axiompay/internal/transactions"
)

// snapshot is the persisted form of a Pool. Verifying keys are not part of
// it; they are loaded from the proof artifacts.
type snapshot struct {
	Address  common.Address                        `json:"address"`
	Scale    fixedpoint.Scale                      `json:"scale"`
	Accounts map[common.Address]string             `json:"accounts"`
	Public   map[common.Address]string             `json:"public"`
	Private  map[common.Address]elgamal.Ciphertext `json:"private"`
	Records  []*Record                             `json:"records"`
	Block    uint64                                `json:"block"`
}

// SaveToFile writes the pool state to a JSON file, overwriting it.
func (p *Pool) SaveToFile(path string) error {
	p.mu.RLock()
	s := snapshot{
		Address:  p.address,
		Scale:    p.scale,
		Accounts: make(map[common.Address]string, len(p.accounts)),
		Public:   make(map[common.Address]string, len(p.public)),
		Private:  p.private,
		Records:  p.records,
		Block:    p.block,
	}
	for addr, pk := range p.accounts {
		s.Accounts[addr] = pk.Pack()
	}
	for addr, b := range p.public {
		s.Public[addr] = b.Dec()
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "encode ledger")
	}
	return errors.Wrap(os.WriteFile(path, raw, 0o600), "write ledger")
}

// LoadFromFile restores a pool written by SaveToFile.
func LoadFromFile(path string, verifiers map[transactions.Kind]groth16.VerifyingKey) (*Pool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read ledger")
	}
	var s snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "decode ledger")
	}
	p := NewPool(s.Address, s.Scale, verifiers)
	for addr, packed := range s.Accounts {
		if err := p.RegisterAccount(addr, packed); err != nil {
			return nil, errors.Wrapf(err, "account %s", addr.Hex())
		}
	}
	for addr, dec := range s.Public {
		b, err := uint256.FromDecimal(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "balance of %s", addr.Hex())
		}
		p.public[addr] = b
	}
	for addr, ct := range s.Private {
		p.private[addr] = ct
	}
	p.records = s.Records
	for _, r := range s.Records {
		p.receipts[r.Hash] = &Receipt{TxHash: r.Hash, Block: r.Block, Status: 1}
	}
	p.block = s.Block
	return p, nil
}

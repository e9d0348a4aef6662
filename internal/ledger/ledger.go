// ledger.go - In-memory confidential token pool.
//
// The Pool plays the role of the on-chain contract the client talks to:
// an address book of private accounts, public token balances, encrypted
// private balances, and the validation a private transfer must pass before
// it is applied. Every check, proof verification included, runs before any
// balance is touched, so a rejected transfer leaves no trace.
//
// The pool is safe for concurrent use and can be persisted as a JSON snapshot.

package ledger

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
	"axiompay/internal/escrow"
	"axiompay/internal/fixedpoint"
	"axiompay/internal/transactions"
	"axiompay/internal/transactions/priv2priv"
	"axiompay/internal/transactions/priv2pub"
	"axiompay/internal/transactions/pub2priv"
)

var (
	ErrAddressNotExist     = errors.New("ledger: address not registered as private account")
	ErrInvalidProof        = errors.New("ledger: proof verification failed")
	ErrInsufficientBalance = errors.New("ledger: insufficient public balance")
	ErrUnknownTx           = errors.New("ledger: unknown transaction")
	ErrAlreadyRegistered   = errors.New("ledger: address already registered")
)

// Record is an applied private transfer. The view keys let the trapdoor
// holder audit the amount later.
type Record struct {
	Hash        common.Hash         `json:"hash"`
	Kind        transactions.Kind   `json:"kind"`
	From        common.Address      `json:"from"`
	To          common.Address      `json:"to"`
	Amount      string              `json:"amount"`
	FromAmount  *elgamal.Ciphertext `json:"fromAmount,omitempty"`
	ToAmount    *elgamal.Ciphertext `json:"toAmount,omitempty"`
	FromViewKey escrow.ViewKey      `json:"fromViewKey,omitempty"`
	ToViewKey   escrow.ViewKey      `json:"toViewKey,omitempty"`
	Block       uint64              `json:"block"`
	Time        time.Time           `json:"time"`
}

// Receipt confirms an applied transaction.
type Receipt struct {
	TxHash common.Hash `json:"txHash"`
	Block  uint64      `json:"block"`
	Status uint64      `json:"status"`
}

// Pool is the reference ledger.
type Pool struct {
	mu        sync.RWMutex
	address   common.Address
	scale     fixedpoint.Scale
	verifiers map[transactions.Kind]groth16.VerifyingKey

	accounts map[common.Address]babyjub.Point
	public   map[common.Address]*uint256.Int
	private  map[common.Address]elgamal.Ciphertext
	records  []*Record
	receipts map[common.Hash]*Receipt
	block    uint64
}

// NewPool returns an empty pool. address is the pool's own account, which
// holds the public tokens backing private balances.
func NewPool(address common.Address, scale fixedpoint.Scale, verifiers map[transactions.Kind]groth16.VerifyingKey) *Pool {
	return &Pool{
		address:   address,
		scale:     scale,
		verifiers: verifiers,
		accounts:  make(map[common.Address]babyjub.Point),
		public:    make(map[common.Address]*uint256.Int),
		private:   make(map[common.Address]elgamal.Ciphertext),
		receipts:  make(map[common.Hash]*Receipt),
	}
}

// Address returns the pool's own account.
func (p *Pool) Address() common.Address { return p.address }

// RegisterAccount records a private account and its packed public key.
func (p *Pool) RegisterAccount(addr common.Address, packedKey string) error {
	pk, err := babyjub.Unpack(packedKey)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[addr]; ok {
		return errors.Wrap(ErrAlreadyRegistered, addr.Hex())
	}
	p.accounts[addr] = pk
	log.Info().Str("account", addr.Hex()).Msg("private account registered")
	return nil
}

func (p *Pool) IsPrivate(_ context.Context, addr common.Address) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.accounts[addr]
	return ok, nil
}

func (p *Pool) PublicKeyOf(_ context.Context, addr common.Address) (babyjub.Point, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pk, ok := p.accounts[addr]
	if !ok {
		return babyjub.Point{}, errors.Wrap(ErrAddressNotExist, addr.Hex())
	}
	return pk, nil
}

// Mint credits public tokens.
func (p *Pool) Mint(addr common.Address, amount *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credit(addr, amount)
}

func (p *Pool) BalanceOf(_ context.Context, addr common.Address) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.public[addr]; ok {
		return b.Clone(), nil
	}
	return new(uint256.Int), nil
}

// PrivateBalanceOf returns the encrypted balance, the identity pair for
// accounts that never received private funds.
func (p *Pool) PrivateBalanceOf(_ context.Context, addr common.Address) (elgamal.Ciphertext, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if ct, ok := p.private[addr]; ok {
		return ct, nil
	}
	return elgamal.ZeroCiphertext(), nil
}

// Transfer moves public tokens.
func (p *Pool) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.debit(from, amount); err != nil {
		return common.Hash{}, err
	}
	p.credit(to, amount)
	return p.seal(from, to, amount, nil), nil
}

// PrivateTransfer validates and applies a confidential transfer.
func (p *Pool) PrivateTransfer(ctx context.Context, from, to common.Address, amount *uint256.Int, data []byte) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	scaled, err := p.scale.Downscale(amount)
	if err != nil {
		return common.Hash{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pa, fromPrivate := p.accounts[from]
	pb, toPrivate := p.accounts[to]
	kind, err := transactions.Classify(fromPrivate, toPrivate)
	if err != nil {
		return common.Hash{}, err
	}
	env, proofBytes, err := transactions.DecodeBundle(kind, data)
	if err != nil {
		return common.Hash{}, err
	}

	var assignment frontend.Circuit
	switch kind {
	case transactions.Pub2Priv:
		if p.balance(from).Lt(amount) {
			return common.Hash{}, ErrInsufficientBalance
		}
		assignment = pub2priv.PublicAssignment(pb, *env.To, scaled)
	case transactions.Priv2Priv:
		assignment = priv2priv.PublicAssignment(pa, pb, *env.From, *env.To, p.privateBalance(from))
	case transactions.Priv2Pub:
		if p.balance(p.address).Lt(amount) {
			return common.Hash{}, ErrInsufficientBalance
		}
		assignment = priv2pub.PublicAssignment(pa, *env.From, p.privateBalance(from), scaled)
	}
	if err := p.verify(kind, assignment, proofBytes); err != nil {
		return common.Hash{}, err
	}

	switch kind {
	case transactions.Pub2Priv:
		_ = p.debit(from, amount)
		p.credit(p.address, amount)
		p.private[to] = p.privateBalance(to).Add(*env.To)
	case transactions.Priv2Priv:
		p.private[from] = p.privateBalance(from).Sub(*env.From)
		p.private[to] = p.privateBalance(to).Add(*env.To)
	case transactions.Priv2Pub:
		p.private[from] = p.privateBalance(from).Sub(*env.From)
		_ = p.debit(p.address, amount)
		p.credit(to, amount)
	}

	rec := &Record{
		Kind:        kind,
		From:        from,
		To:          to,
		Amount:      amount.Dec(),
		FromAmount:  env.From,
		ToAmount:    env.To,
		FromViewKey: env.FromViewKey,
		ToViewKey:   env.ToViewKey,
	}
	rec.Hash = p.seal(from, to, amount, data)
	rec.Block = p.block
	rec.Time = time.Now().UTC()
	p.records = append(p.records, rec)

	log.Info().
		Str("kind", kind.String()).
		Str("tx", rec.Hash.Hex()).
		Uint64("block", rec.Block).
		Msg("private transfer applied")
	return rec.Hash, nil
}

func (p *Pool) verify(kind transactions.Kind, assignment frontend.Circuit, proofBytes []byte) error {
	vk, ok := p.verifiers[kind]
	if !ok {
		return errors.Wrapf(ErrInvalidProof, "no verifying key for %s", kind)
	}
	cd, err := transactions.UnpackProof(proofBytes)
	if err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	proof, err := cd.Proof()
	if err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	public, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return errors.Wrap(ErrInvalidProof, "cannot build public witness")
	}
	expected, err := transactions.PublicSignals(public)
	if err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	if len(expected) != len(cd.PubSignals) {
		return errors.Wrap(ErrInvalidProof, "public signal count mismatch")
	}
	for i := range expected {
		if cd.PubSignals[i] == nil || expected[i].Cmp(cd.PubSignals[i]) != 0 {
			return errors.Wrapf(ErrInvalidProof, "public signal %d mismatch", i)
		}
	}
	if err := groth16.Verify(proof, vk, public); err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	return nil
}

// WaitReceipt returns the receipt of an applied transaction.
func (p *Pool) WaitReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.receipts[hash]
	if !ok {
		return nil, errors.Wrap(ErrUnknownTx, hash.Hex())
	}
	cp := *r
	return &cp, nil
}

// Records returns all applied private transfers in order.
func (p *Pool) Records() []Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Record, len(p.records))
	for i, r := range p.records {
		out[i] = *r
	}
	return out
}

// Record returns one applied private transfer.
func (p *Pool) Record(hash common.Hash) (*Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.records {
		if r.Hash == hash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errors.Wrap(ErrUnknownTx, hash.Hex())
}

// seal assigns a block and hash to an applied transaction. Callers hold mu.
func (p *Pool) seal(from, to common.Address, amount *uint256.Int, data []byte) common.Hash {
	p.block++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], p.block)
	amt := amount.Bytes32()
	h := crypto.Keccak256Hash(from.Bytes(), to.Bytes(), amt[:], data, n[:])
	p.receipts[h] = &Receipt{TxHash: h, Block: p.block, Status: 1}
	return h
}

func (p *Pool) balance(addr common.Address) *uint256.Int {
	if b, ok := p.public[addr]; ok {
		return b
	}
	return new(uint256.Int)
}

func (p *Pool) privateBalance(addr common.Address) elgamal.Ciphertext {
	if ct, ok := p.private[addr]; ok {
		return ct
	}
	return elgamal.ZeroCiphertext()
}

func (p *Pool) credit(addr common.Address, amount *uint256.Int) {
	p.public[addr] = new(uint256.Int).Add(p.balance(addr), amount)
}

func (p *Pool) debit(addr common.Address, amount *uint256.Int) error {
	b := p.balance(addr)
	if b.Lt(amount) {
		return ErrInsufficientBalance
	}
	p.public[addr] = new(uint256.Int).Sub(b, amount)
	return nil
}

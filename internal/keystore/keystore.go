// keystore.go - Persistent store for the trapdoor key pair and deployment records.
//
// The document is a single JSON object:
//
//	{"contracts": [{"contractName": ..., "contractAddress": ...}],
//	 "cryptoParams": {"n": ..., "p": ..., "q": ...}}
//
// cryptoParams is null until the first GenerateOrRetrieve. Once written it
// is never regenerated: a document that cannot be turned back into a valid
// key pair is reported as corrupt.
//
// The store serializes callers within one process. Separate processes
// sharing a document must coordinate externally.

package keystore

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/taurusgroup/multi-party-sig/pkg/pool"

	"axiompay/internal/escrow"
)

var (
	ErrKeyStoreCorrupt  = errors.New("keystore: persisted key material is corrupt")
	ErrContractNotFound = errors.New("keystore: contract not recorded")
	ErrKeyNotGenerated  = errors.New("keystore: trapdoor key pair not generated yet")
)

// ContractRecord is one deployed contract.
type ContractRecord struct {
	Name    string         `json:"contractName"`
	Address common.Address `json:"contractAddress"`
}

// CryptoParams is the persisted trapdoor key pair, as decimal strings.
type CryptoParams struct {
	N string `json:"n"`
	P string `json:"p"`
	Q string `json:"q"`
}

// Document is the full persisted state.
type Document struct {
	Contracts    []ContractRecord `json:"contracts"`
	CryptoParams *CryptoParams    `json:"cryptoParams"`
}

// Generator creates a fresh trapdoor key pair of the given modulus size.
type Generator func(ctx context.Context, bits int) (*escrow.SecretKey, error)

// Options control key generation.
type Options struct {
	Bits            int
	MarginBits      int
	RandomnessBound *big.Int
}

// Store reads and writes the key store document through a Backend.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	opts     Options
	generate Generator
}

// New returns a Store. Keys are generated with escrow.GenerateKey unless
// WithGenerator overrides it.
func New(backend Backend, opts Options) *Store {
	return &Store{backend: backend, opts: opts, generate: defaultGenerator}
}

func defaultGenerator(ctx context.Context, bits int) (*escrow.SecretKey, error) {
	pl := pool.NewPool(0)
	defer pl.TearDown()
	return escrow.GenerateKey(ctx, bits, pl)
}

// WithGenerator replaces the key generator.
func (s *Store) WithGenerator(g Generator) *Store {
	s.generate = g
	return s
}

// GenerateOrRetrieve returns the persisted trapdoor key pair, generating and
// persisting one on first use.
func (s *Store) GenerateOrRetrieve(ctx context.Context) (*escrow.SecretKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if doc.CryptoParams != nil {
		return s.restore(doc.CryptoParams)
	}

	sk, err := s.generate(ctx, s.opts.Bits)
	if err != nil {
		return nil, errors.Wrap(err, "keystore: generate trapdoor key")
	}
	if err := escrow.CheckMargin(sk.Public(), s.opts.RandomnessBound, s.opts.MarginBits); err != nil {
		return nil, err
	}
	doc.CryptoParams = &CryptoParams{
		N: sk.N().String(),
		P: sk.P().String(),
		Q: sk.Q().String(),
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	log.Info().Int("bits", sk.BitLen()).Msg("trapdoor key pair generated")
	return sk, nil
}

// Retrieve returns the persisted trapdoor key pair without ever writing
// the document. A missing document or key is ErrKeyNotGenerated.
func (s *Store) Retrieve(ctx context.Context) (*escrow.SecretKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrKeyNotGenerated
	}
	if err != nil {
		return nil, err
	}
	if doc.CryptoParams == nil {
		return nil, ErrKeyNotGenerated
	}
	return s.restore(doc.CryptoParams)
}

func (s *Store) restore(cp *CryptoParams) (*escrow.SecretKey, error) {
	n, okN := new(big.Int).SetString(cp.N, 10)
	p, okP := new(big.Int).SetString(cp.P, 10)
	q, okQ := new(big.Int).SetString(cp.Q, 10)
	if !okN || !okP || !okQ {
		return nil, errors.Wrap(ErrKeyStoreCorrupt, "malformed decimal parameter")
	}
	sk, err := escrow.NewSecretKeyFromPrimes(p, q)
	if err != nil {
		return nil, errors.Wrap(ErrKeyStoreCorrupt, err.Error())
	}
	if sk.N().Cmp(n) != 0 {
		return nil, errors.Wrap(ErrKeyStoreCorrupt, "modulus does not match factors")
	}
	if err := escrow.CheckMargin(sk.Public(), s.opts.RandomnessBound, s.opts.MarginBits); err != nil {
		return nil, errors.Wrap(ErrKeyStoreCorrupt, err.Error())
	}
	return sk, nil
}

// UpdateContract records or replaces the address of a named contract.
func (s *Store) UpdateContract(ctx context.Context, name string, addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Contracts {
		if doc.Contracts[i].Name == name {
			doc.Contracts[i].Address = addr
			replaced = true
		}
	}
	if !replaced {
		doc.Contracts = append(doc.Contracts, ContractRecord{Name: name, Address: addr})
	}
	return s.save(ctx, doc)
}

// Contract returns the recorded address of a named contract.
func (s *Store) Contract(ctx context.Context, name string) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return common.Address{}, err
	}
	for _, c := range doc.Contracts {
		if c.Name == name {
			return c.Address, nil
		}
	}
	return common.Address{}, errors.Wrap(ErrContractNotFound, name)
}

// load reads the document, creating the default one if none exists.
func (s *Store) load(ctx context.Context) (*Document, error) {
	doc, err := s.read(ctx)
	if errors.Is(err, os.ErrNotExist) {
		doc = &Document{Contracts: []ContractRecord{}}
		if err := s.save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	return doc, err
}

// read decodes the document. A missing document is reported as
// os.ErrNotExist.
func (s *Store) read(ctx context.Context) (*Document, error) {
	raw, err := s.backend.Load(ctx)
	if errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "keystore: load document")
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(ErrKeyStoreCorrupt, err.Error())
	}
	if doc.Contracts == nil {
		doc.Contracts = []ContractRecord{}
	}
	return &doc, nil
}

func (s *Store) save(ctx context.Context, doc *Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "keystore: encode document")
	}
	return s.backend.Save(ctx, raw)
}

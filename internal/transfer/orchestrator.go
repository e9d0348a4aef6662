// orchestrator.go - Drives one confidential transfer from classification to receipt.
//
// A transfer moves Building -> WitnessReady -> Proven -> Submitted -> Confirmed,
// or to Failed from any of them. Nothing is retried across stages: every
// Execute starts from Building and draws fresh randomness. Transfers of the
// same kind share a workspace directory and are serialized.

package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"axiompay/internal/babyjub"
	"axiompay/internal/dlog"
	"axiompay/internal/elgamal"
	"axiompay/internal/escrow"
	"axiompay/internal/fixedpoint"
	"axiompay/internal/ledger"
	"axiompay/internal/transactions"
)

var (
	ErrSenderKeyRequired = errors.New("transfer: private sender requires its key pair")
	ErrSenderKeyMismatch = errors.New("transfer: sender key pair does not match the address book")
)

// State is the position of a transfer in its lifecycle.
type State string

const (
	Building     State = "building"
	WitnessReady State = "witness_ready"
	Proven       State = "proven"
	Submitted    State = "submitted"
	Confirmed    State = "confirmed"
	Failed       State = "failed"
)

// Ledger is the contract surface a transfer is validated and applied by.
type Ledger interface {
	IsPrivate(ctx context.Context, addr common.Address) (bool, error)
	PublicKeyOf(ctx context.Context, addr common.Address) (babyjub.Point, error)
	BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error)
	PrivateBalanceOf(ctx context.Context, addr common.Address) (elgamal.Ciphertext, error)
	PrivateTransfer(ctx context.Context, from, to common.Address, amount *uint256.Int, data []byte) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*ledger.Receipt, error)
}

// Prover runs the proof stages of a kind. *pipeline.Pipeline implements it.
type Prover interface {
	WriteInput(ctx context.Context, in transactions.Input, env *transactions.Envelope) error
	GenerateWitness(ctx context.Context, kind transactions.Kind) error
	GenerateProof(ctx context.Context, kind transactions.Kind) error
	ExportCalldata(ctx context.Context, kind transactions.Kind) ([]byte, error)
}

// Observer receives one event per finished transfer.
type Observer interface {
	ObserveTransfer(kind, state string, elapsed time.Duration)
}

// Request describes a transfer. Sender is required when From is a private
// account; Recipient, when set, is used to decode the recipient's balance
// after confirmation.
type Request struct {
	From      common.Address
	To        common.Address
	Amount    *uint256.Int
	Sender    *babyjub.KeyPair
	Recipient *babyjub.KeyPair
}

// Transfer is the record of one Execute call. FailedAt is the last state
// reached before a failure.
type Transfer struct {
	Kind        transactions.Kind
	State       State
	FailedAt    State
	Err         error
	Amount      uint64
	TxHash      common.Hash
	Receipt     *ledger.Receipt
	FromViewKey escrow.ViewKey
	ToViewKey   escrow.ViewKey

	// RecipientBalance is the decoded recipient balance, set only when the
	// request carried the recipient's key pair.
	RecipientBalance *uint64
}

func (t *Transfer) advance(s State) {
	log.Debug().Str("kind", t.Kind.String()).Str("state", string(s)).Msg("transfer state")
	t.State = s
}

func (t *Transfer) fail(err error) error {
	t.FailedAt, t.State, t.Err = t.State, Failed, err
	return errors.WithMessagef(err, "transfer failed while %s", t.FailedAt)
}

// Orchestrator wires the ledger, the proof pipeline and the ciphers.
type Orchestrator struct {
	Ledger    Ledger
	Prover    Prover
	Encrypter *elgamal.Encrypter
	Escrow    *escrow.PublicKey
	Recoverer *dlog.Recoverer
	Scale     fixedpoint.Scale
	Observer  Observer

	locks map[transactions.Kind]*sync.Mutex
}

// New returns an orchestrator. Escrow is the trapdoor public key view keys
// are produced under.
func New(l Ledger, p Prover, enc *elgamal.Encrypter, esc *escrow.PublicKey, rec *dlog.Recoverer, scale fixedpoint.Scale) *Orchestrator {
	o := &Orchestrator{
		Ledger:    l,
		Prover:    p,
		Encrypter: enc,
		Escrow:    esc,
		Recoverer: rec,
		Scale:     scale,
		locks:     make(map[transactions.Kind]*sync.Mutex, len(transactions.Kinds)),
	}
	for _, k := range transactions.Kinds {
		o.locks[k] = new(sync.Mutex)
	}
	return o
}

// Execute runs a transfer to confirmation. The returned record is non-nil
// even on failure and tells at which state the transfer stopped.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Transfer, error) {
	start := time.Now()
	t := &Transfer{State: Building}
	err := o.execute(ctx, req, t)
	if err != nil {
		err = t.fail(err)
		log.Error().Err(err).
			Str("kind", t.Kind.String()).
			Str("failed_at", string(t.FailedAt)).
			Msg("transfer failed")
	}
	if o.Observer != nil && t.Kind != "" {
		o.Observer.ObserveTransfer(t.Kind.String(), string(t.State), time.Since(start))
	}
	return t, err
}

func (o *Orchestrator) execute(ctx context.Context, req Request, t *Transfer) error {
	if req.Amount == nil {
		return errors.New("transfer: missing amount")
	}
	fromPrivate, err := o.Ledger.IsPrivate(ctx, req.From)
	if err != nil {
		return err
	}
	toPrivate, err := o.Ledger.IsPrivate(ctx, req.To)
	if err != nil {
		return err
	}
	kind, err := transactions.Classify(fromPrivate, toPrivate)
	if err != nil {
		return err
	}
	t.Kind = kind

	mu := o.locks[kind]
	mu.Lock()
	defer mu.Unlock()

	amount, err := o.Scale.Downscale(req.Amount)
	if err != nil {
		return err
	}
	t.Amount = amount

	m := Material{Amount: amount}
	env := &transactions.Envelope{}

	if toPrivate {
		pb, err := o.Ledger.PublicKeyOf(ctx, req.To)
		if err != nil {
			return err
		}
		m.Recipient = &pb
	}
	if fromPrivate {
		if err := o.loadSender(ctx, req, &m); err != nil {
			return err
		}
	}

	if m.Sender != nil {
		enc, vk, err := o.encrypt(m.Sender.Public, amount)
		if err != nil {
			return err
		}
		m.FromEncryption = enc
		env.From, env.FromViewKey = &enc.Ciphertext, vk
	}
	if m.Recipient != nil {
		enc, vk, err := o.encrypt(*m.Recipient, amount)
		if err != nil {
			return err
		}
		m.ToEncryption = enc
		env.To, env.ToViewKey = &enc.Ciphertext, vk
	}
	t.FromViewKey, t.ToViewKey = env.FromViewKey, env.ToViewKey

	in, err := BuildInput(kind, m)
	if err != nil {
		return err
	}

	if err := o.Prover.WriteInput(ctx, in, env); err != nil {
		return err
	}
	if err := o.Prover.GenerateWitness(ctx, kind); err != nil {
		return err
	}
	t.advance(WitnessReady)
	if err := o.Prover.GenerateProof(ctx, kind); err != nil {
		return err
	}
	t.advance(Proven)
	data, err := o.Prover.ExportCalldata(ctx, kind)
	if err != nil {
		return err
	}

	hash, err := o.Ledger.PrivateTransfer(ctx, req.From, req.To, req.Amount, data)
	if err != nil {
		return err
	}
	t.TxHash = hash
	t.advance(Submitted)

	receipt, err := o.Ledger.WaitReceipt(ctx, hash)
	if err != nil {
		return err
	}
	t.Receipt = receipt
	t.advance(Confirmed)

	log.Info().
		Str("kind", kind.String()).
		Str("tx", hash.Hex()).
		Uint64("block", receipt.Block).
		Msg("transfer confirmed")

	if toPrivate && req.Recipient != nil {
		bal, err := o.PrivateBalance(ctx, req.To, req.Recipient)
		if err != nil {
			log.Warn().Err(err).Str("account", req.To.Hex()).Msg("could not decode recipient balance")
			return nil
		}
		t.RecipientBalance = &bal
	}
	return nil
}

// loadSender checks the sender key against the address book and decodes
// the sender's current balance.
func (o *Orchestrator) loadSender(ctx context.Context, req Request, m *Material) error {
	if req.Sender == nil {
		return ErrSenderKeyRequired
	}
	pa, err := o.Ledger.PublicKeyOf(ctx, req.From)
	if err != nil {
		return err
	}
	if !pa.Equal(req.Sender.Public) {
		return errors.Wrap(ErrSenderKeyMismatch, req.From.Hex())
	}
	ct, err := o.Ledger.PrivateBalanceOf(ctx, req.From)
	if err != nil {
		return err
	}
	bal, err := o.Recoverer.Recover(ctx, ct, req.Sender.Private)
	if err != nil {
		return errors.Wrap(err, "decode sender balance")
	}
	m.Sender, m.SenderBalance, m.Balance = req.Sender, &ct, bal
	return nil
}

// encrypt encrypts amount under pk with fresh randomness and escrows the randomness.
func (o *Orchestrator) encrypt(pk babyjub.Point, amount uint64) (*elgamal.Encryption, escrow.ViewKey, error) {
	enc, err := o.Encrypter.Encrypt(pk, amount)
	if err != nil {
		return nil, nil, err
	}
	vk, err := escrow.Escrow(o.Escrow, enc.K)
	if err != nil {
		return nil, nil, err
	}
	return enc, vk, nil
}

// PrivateBalance decodes the private balance of addr with its key pair.
func (o *Orchestrator) PrivateBalance(ctx context.Context, addr common.Address, kp *babyjub.KeyPair) (uint64, error) {
	ct, err := o.Ledger.PrivateBalanceOf(ctx, addr)
	if err != nil {
		return 0, err
	}
	return o.Recoverer.Recover(ctx, ct, kp.Private)
}

// AuditReport is the outcome of opening the view keys of a recorded transfer.
type AuditReport struct {
	Kind       transactions.Kind
	TxHash     common.Hash
	FromAmount *uint64
	ToAmount   *uint64
	Consistent bool
}

// Audit opens the view keys of rec with the trapdoor secret key and
// recovers the transferred amount on each private side, without any
// account's private key.
func (o *Orchestrator) Audit(ctx context.Context, trapdoor *escrow.SecretKey, rec *ledger.Record) (*AuditReport, error) {
	r := &AuditReport{Kind: rec.Kind, TxHash: rec.Hash}
	side := func(addr common.Address, ct *elgamal.Ciphertext, vk escrow.ViewKey) (*uint64, error) {
		if ct == nil || len(vk) == 0 {
			return nil, nil
		}
		k, err := escrow.Open(trapdoor, vk)
		if err != nil {
			return nil, err
		}
		pk, err := o.Ledger.PublicKeyOf(ctx, addr)
		if err != nil {
			return nil, err
		}
		m, err := o.Recoverer.RecoverWithEscrow(ctx, ct.C2, k, pk)
		if err != nil {
			return nil, err
		}
		return &m, nil
	}

	var err error
	if r.FromAmount, err = side(rec.From, rec.FromAmount, rec.FromViewKey); err != nil {
		return nil, errors.WithMessage(err, "audit sender side")
	}
	if r.ToAmount, err = side(rec.To, rec.ToAmount, rec.ToViewKey); err != nil {
		return nil, errors.WithMessage(err, "audit recipient side")
	}

	r.Consistent = r.FromAmount != nil || r.ToAmount != nil
	if r.FromAmount != nil && r.ToAmount != nil && *r.FromAmount != *r.ToAmount {
		r.Consistent = false
	}
	if r.Consistent {
		recovered := r.ToAmount
		if recovered == nil {
			recovered = r.FromAmount
		}
		want, werr := uint256.FromDecimal(rec.Amount)
		got, gerr := o.Scale.Upscale(*recovered)
		if werr != nil || gerr != nil || !got.Eq(want) {
			r.Consistent = false
		}
	}

	log.Info().
		Str("kind", rec.Kind.String()).
		Str("tx", rec.Hash.Hex()).
		Bool("consistent", r.Consistent).
		Msg("transfer audited")
	return r, nil
}

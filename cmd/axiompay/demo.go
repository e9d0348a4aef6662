package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"axiompay/internal/dlog"
	"axiompay/internal/elgamal"
	"axiompay/internal/escrow"
	"axiompay/internal/ledger"
	"axiompay/internal/pipeline"
	"axiompay/internal/transfer"
	"axiompay/internal/wallet"
)

const demoUnits = 22

// openWallet loads a wallet, creating it on first use.
func openWallet(s wallet.Store, name string) (*wallet.Wallet, error) {
	w, err := s.Load(name)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		return s.Create(name, addressOf(name))
	}
	return w, err
}

// runDemo moves 22 units from alice's public balance to bob's private
// balance, then privately to carol, then back to alice's public balance.
// Every step is audited with the trapdoor key.
func runDemo(ctx context.Context, a *app, _ []string) error {
	for _, def := range transfer.Definitions() {
		if _, err := a.artifacts().Setup(def); err != nil {
			return err
		}
	}
	verifiers, err := a.verifiers()
	if err != nil {
		return err
	}

	store := a.keyStore()
	trapdoor, err := store.GenerateOrRetrieve(ctx)
	if err != nil {
		return err
	}

	pool := ledger.NewPool(addressOf("axiompay-pool"), a.cfg.Decimals, verifiers)
	if err := store.UpdateContract(ctx, "ledger", pool.Address()); err != nil {
		return err
	}

	wallets := wallet.Store{Dir: a.cfg.Paths.Wallets}
	alice, err := openWallet(wallets, "alice")
	if err != nil {
		return err
	}
	bob, err := openWallet(wallets, "bob")
	if err != nil {
		return err
	}
	carol, err := openWallet(wallets, "carol")
	if err != nil {
		return err
	}
	for _, w := range []*wallet.Wallet{bob, carol} {
		if err := pool.RegisterAccount(w.Address, w.PackedPublicKey()); err != nil {
			return err
		}
	}

	funding, err := a.cfg.Decimals.Upscale(100)
	if err != nil {
		return err
	}
	pool.Mint(alice.Address, funding)
	amount, err := a.cfg.Decimals.Upscale(demoUnits)
	if err != nil {
		return err
	}

	rec := &dlog.Recoverer{Bound: a.cfg.Crypto.AmountBound, Workers: a.cfg.Crypto.Workers, Observer: a.metrics}
	prover := pipeline.New(pipeline.Workspace{Root: a.cfg.Paths.Workspace}, a.artifacts(), transfer.Definitions()...)
	prover.Observer = a.metrics
	orch := transfer.New(pool, prover,
		elgamal.NewEncrypter(a.cfg.Crypto.RandomnessBound(), a.cfg.Crypto.AmountBound),
		trapdoor.Public(),
		rec,
		a.cfg.Decimals,
	)
	orch.Observer = a.metrics

	steps := []struct {
		label string
		req   transfer.Request
	}{
		{"alice -> bob", transfer.Request{From: alice.Address, To: bob.Address, Amount: amount, Recipient: bob.Keys}},
		{"bob -> carol", transfer.Request{From: bob.Address, To: carol.Address, Amount: amount, Sender: bob.Keys, Recipient: carol.Keys}},
		{"carol -> alice", transfer.Request{From: carol.Address, To: alice.Address, Amount: amount, Sender: carol.Keys}},
	}
	for _, step := range steps {
		start := time.Now()
		t, err := orch.Execute(ctx, step.req)
		if err != nil {
			return err
		}
		report, err := audit(ctx, orch, trapdoor, pool, t.TxHash)
		if err != nil {
			return err
		}
		a.logger.Audit("transfer_confirmed").
			Str("kind", t.Kind.String()).
			Str("tx", t.TxHash.Hex()).
			Uint64("block", t.Receipt.Block).
			Bool("consistent", report.Consistent).
			Send()
		fmt.Printf("%-15s %-9s tx=%s block=%d audit=%v (%s)\n",
			step.label, t.Kind, t.TxHash.Hex(), t.Receipt.Block, report.Consistent, time.Since(start).Round(time.Millisecond))
	}

	aliceBalance, err := pool.BalanceOf(ctx, alice.Address)
	if err != nil {
		return err
	}
	bobBalance, err := orch.PrivateBalance(ctx, bob.Address, bob.Keys)
	if err != nil {
		return err
	}
	carolBalance, err := orch.PrivateBalance(ctx, carol.Address, carol.Keys)
	if err != nil {
		return err
	}
	fmt.Printf("alice public=%s bob private=%d carol private=%d\n", aliceBalance.Dec(), bobBalance, carolBalance)
	log.Info().Int("transfers", len(pool.Records())).Msg("demo finished")

	return pool.SaveToFile(a.cfg.Paths.Ledger)
}

func audit(ctx context.Context, orch *transfer.Orchestrator, trapdoor *escrow.SecretKey, pool *ledger.Pool, hash common.Hash) (*transfer.AuditReport, error) {
	rec, err := pool.Record(hash)
	if err != nil {
		return nil, err
	}
	return orch.Audit(ctx, trapdoor, rec)
}

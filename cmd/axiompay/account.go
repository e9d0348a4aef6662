package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"

	"axiompay/internal/ledger"
	"axiompay/internal/wallet"
)

// addressOf derives a stable demo address from an account name.
func addressOf(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name))[12:])
}

// openLedger loads the reference ledger snapshot, or starts an empty one.
func (a *app) openLedger() (*ledger.Pool, error) {
	verifiers, err := a.verifiers()
	if err != nil {
		return nil, err
	}
	pool, err := ledger.LoadFromFile(a.cfg.Paths.Ledger, verifiers)
	if errors.Is(err, os.ErrNotExist) {
		return ledger.NewPool(addressOf("axiompay-pool"), a.cfg.Decimals, verifiers), nil
	}
	return pool, err
}

// runAccount creates a wallet and, with -register, adds its public key to
// the ledger address book.
func runAccount(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("account", flag.ExitOnError)
	name := fs.String("name", "", "account name (required)")
	address := fs.String("address", "", "ledger address, derived from the name when empty")
	register := fs.Bool("register", false, "register the public key with the ledger")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		fs.Usage()
		return fmt.Errorf("missing -name")
	}

	addr := addressOf(*name)
	if *address != "" {
		if !common.IsHexAddress(*address) {
			return fmt.Errorf("invalid address %q", *address)
		}
		addr = common.HexToAddress(*address)
	}

	w, err := wallet.Store{Dir: a.cfg.Paths.Wallets}.Create(*name, addr)
	if err != nil {
		return err
	}
	log.Info().Str("account", *name).Str("address", addr.Hex()).Msg("wallet created")
	fmt.Printf("%s %s %s\n", *name, addr.Hex(), w.PackedPublicKey())

	if !*register {
		return nil
	}
	pool, err := a.openLedger()
	if err != nil {
		return err
	}
	if err := pool.RegisterAccount(addr, w.PackedPublicKey()); err != nil {
		return err
	}
	a.logger.Audit("account_registered").Str("account", addr.Hex()).Send()
	return pool.SaveToFile(a.cfg.Paths.Ledger)
}

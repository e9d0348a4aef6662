package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// runKeys generates the trapdoor key pair on first use and prints its
// public modulus. With -contract and -address it also records a deployment.
func runKeys(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("keys", flag.ExitOnError)
	contract := fs.String("contract", "", "contract name to record")
	address := fs.String("address", "", "contract address to record")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := a.keyStore()
	start := time.Now()
	sk, err := store.GenerateOrRetrieve(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("bits", sk.BitLen()).Dur("elapsed", time.Since(start)).Msg("trapdoor key pair ready")
	a.logger.Audit("trapdoor_ready").Int("bits", sk.BitLen()).Str("keystore", a.cfg.Paths.KeyStore).Send()
	fmt.Printf("trapdoor modulus (%d bits):\n%s\n", sk.BitLen(), sk.N())

	if *contract == "" {
		return nil
	}
	if !common.IsHexAddress(*address) {
		return fmt.Errorf("invalid contract address %q", *address)
	}
	addr := common.HexToAddress(*address)
	if err := store.UpdateContract(ctx, *contract, addr); err != nil {
		return err
	}
	a.logger.Audit("contract_recorded").Str("contract", *contract).Str("address", addr.Hex()).Send()
	fmt.Printf("%s: %s\n", *contract, addr.Hex())
	return nil
}

// main.go - axiompay command line client.
//
// Usage:
//
//	axiompay [-config axiompay.yaml] <command> [flags]
//
// Commands:
//
//	setup    compile the transfer circuits and write proving artifacts
//	keys     generate or show the trapdoor key pair, record contract addresses
//	account  create an account wallet and optionally register it with the ledger
//	demo     run the 22-unit public -> private -> private -> public scenario
//	serve    expose /metrics and /healthz
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/rs/zerolog/log"

	"axiompay/internal/config"
	"axiompay/internal/keystore"
	"axiompay/internal/logging"
	"axiompay/internal/metrics"
	"axiompay/internal/pipeline"
	"axiompay/internal/transactions"
)

const version = "0.3.0"

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"setup", "compile circuits and write proving artifacts", runSetup},
	{"keys", "generate or show the trapdoor key pair", runKeys},
	{"account", "create an account wallet", runAccount},
	{"demo", "run the 22-unit transfer scenario", runDemo},
	{"serve", "serve metrics and health endpoints", runServe},
}

// app is the state shared by all commands.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Collector
}

func (a *app) keyStore() *keystore.Store {
	return keystore.New(keystore.NewFileBackend(a.cfg.Paths.KeyStore), keystore.Options{
		Bits:            a.cfg.Crypto.TrapdoorBits,
		MarginBits:      a.cfg.Crypto.TrapdoorMarginBits,
		RandomnessBound: a.cfg.Crypto.RandomnessBound(),
	})
}

func (a *app) artifacts() pipeline.Artifacts {
	return pipeline.Artifacts{Dir: a.cfg.Paths.Artifacts}
}

func (a *app) verifiers() (map[transactions.Kind]groth16.VerifyingKey, error) {
	out := make(map[transactions.Kind]groth16.VerifyingKey, len(transactions.Kinds))
	for _, kind := range transactions.Kinds {
		vk, err := a.artifacts().LoadVerifyingKey(kind)
		if err != nil {
			return nil, fmt.Errorf("load %s verifying key (run axiompay setup): %w", kind, err)
		}
		out[kind] = vk
	}
	return out, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "axiompay %s\n\nUsage: axiompay [-config file] <command> [flags]\n\nCommands:\n", version)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "axiompay.yaml", "configuration file, created with defaults if missing")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == flag.Arg(0) {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.Setup(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	if err := cmd.run(ctx, a, flag.Args()[1:]); err != nil {
		log.Error().Stack().Err(err).Str("command", cmd.name).Msg("command failed")
		logger.Close()
		os.Exit(1)
	}
}

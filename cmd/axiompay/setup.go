package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"axiompay/internal/transactions"
	"axiompay/internal/transfer"
)

// runSetup compiles every circuit and writes its artifacts, reusing
// artifacts that already exist.
func runSetup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	only := fs.String("kind", "", "set up a single kind (pub2priv, priv2priv, priv2pub)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var want transactions.Kind
	if *only != "" {
		k, err := transactions.ParseKind(*only)
		if err != nil {
			return err
		}
		want = k
	}

	for _, def := range transfer.Definitions() {
		if want != "" && def.Kind != want {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		keys, err := a.artifacts().Setup(def)
		if err != nil {
			return err
		}
		a.metrics.RecordCircuitSetup(def.Kind.String())
		log.Info().
			Str("kind", def.Kind.String()).
			Int("constraints", keys.CS.GetNbConstraints()).
			Dur("elapsed", time.Since(start)).
			Msg("circuit artifacts ready")
	}
	a.logger.Audit("circuit_setup").Str("artifacts", a.cfg.Paths.Artifacts).Send()
	return nil
}

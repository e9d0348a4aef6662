package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"axiompay/internal/keystore"
	"axiompay/internal/metrics"
	"axiompay/internal/transactions"
)

// keyStoreCheck reports the trapdoor key pair without generating it. A
// key that was never generated is degraded.
func keyStoreCheck(store *keystore.Store) metrics.Checker {
	return func(ctx context.Context) error {
		_, err := store.Retrieve(ctx)
		if errors.Is(err, keystore.ErrKeyNotGenerated) {
			return fmt.Errorf("%w: %v", metrics.ErrDegraded, err)
		}
		return err
	}
}

// runServe exposes the metrics registry and a health report until the
// context is cancelled.
func runServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", a.cfg.Metrics.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.metrics.WithGoCollectorRuntimeMetrics().WithBuildInfoCollector()

	health := metrics.NewHealthChecker(version)
	health.RegisterComponent("keystore", keyStoreCheck(a.keyStore()))
	health.RegisterComponent("artifacts", func(context.Context) error {
		for _, kind := range transactions.Kinds {
			if _, err := a.artifacts().LoadVerifyingKey(kind); err != nil {
				return err
			}
		}
		return nil
	})
	health.RegisterComponent("ledger", func(context.Context) error {
		_, err := os.Stat(a.cfg.Paths.Ledger)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.Handle("/healthz", health)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Msg("serving metrics and health")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

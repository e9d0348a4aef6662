// dlog.go - Bounded discrete-log search for recovering ElGamal plaintexts.
//
// The candidate range [0, bound) is split into contiguous slices, one per
// worker. Each worker walks its slice with one point addition per step and
// compares against the target. The first match cancels every other worker.

package dlog

import (
	"context"
	"math/big"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"axiompay/internal/babyjub"
	"axiompay/internal/elgamal"
)

// ErrDiscreteLogNotFound is returned when no m in [0, bound) satisfies m·G = target.
var ErrDiscreteLogNotFound = errors.New("dlog: discrete log not found within bound")

// checkEvery is how many steps a worker takes between context checks.
const checkEvery = 1 << 12

// Observer receives one event per finished search.
type Observer interface {
	ObserveSearch(elapsed time.Duration, candidates uint64, found bool)
}

// Search returns the unique m < bound with m·G = target.
// workers <= 0 means one worker per CPU.
func Search(ctx context.Context, target babyjub.Point, bound uint64, workers int) (uint64, error) {
	m, _, err := search(ctx, target, bound, workers)
	return m, err
}

func search(ctx context.Context, target babyjub.Point, bound uint64, workers int) (uint64, uint64, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if bound == 0 {
		return 0, 0, ErrDiscreteLogNotFound
	}
	if uint64(workers) > bound {
		workers = int(bound)
	}

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var tried atomic.Uint64
	found := make(chan uint64, 1)
	g, gctx := errgroup.WithContext(ctx)

	chunk := bound / uint64(workers)
	if bound%uint64(workers) != 0 {
		chunk++
	}
	gen := babyjub.Base()
	for w := uint64(0); w < uint64(workers); w++ {
		if w > (bound-1)/chunk {
			break
		}
		lo := w * chunk
		hi := lo + min(chunk, bound-lo)
		g.Go(func() error {
			cur := gen.ScalarMul(new(big.Int).SetUint64(lo))
			var n uint64
			for i := lo; i < hi; i++ {
				if cur.Equal(target) {
					tried.Add(n + 1)
					select {
					case found <- i:
					default:
					}
					cancel()
					return nil
				}
				cur = cur.Add(gen)
				n++
				if n%checkEvery == 0 && gctx.Err() != nil {
					break
				}
			}
			tried.Add(n)
			return nil
		})
	}
	_ = g.Wait()

	select {
	case m := <-found:
		return m, tried.Load(), nil
	default:
	}
	if err := parent.Err(); err != nil {
		return 0, tried.Load(), err
	}
	return 0, tried.Load(), ErrDiscreteLogNotFound
}

// Recover decodes ct with sk and searches for the plaintext.
func Recover(ctx context.Context, ct elgamal.Ciphertext, sk *big.Int, bound uint64, workers int) (uint64, error) {
	target, err := elgamal.Decode(sk, ct)
	if err != nil {
		return 0, err
	}
	return Search(ctx, target, bound, workers)
}

// RecoverWithEscrow recovers m from C2 = m·G + k·pk given the escrowed k,
// without the recipient's private key.
func RecoverWithEscrow(ctx context.Context, c2 babyjub.Point, k *big.Int, pk babyjub.Point, bound uint64, workers int) (uint64, error) {
	return Search(ctx, escrowTarget(c2, k, pk), bound, workers)
}

func escrowTarget(c2 babyjub.Point, k *big.Int, pk babyjub.Point) babyjub.Point {
	lhs := pk.ScalarMul(k)
	negate := new(big.Int).Sub(babyjub.Order(), big.NewInt(1))
	return c2.Add(lhs.ScalarMul(negate))
}

// Recoverer carries a search bound and worker count for repeated recoveries.
type Recoverer struct {
	Bound    uint64
	Workers  int
	Observer Observer
}

func (r *Recoverer) Search(ctx context.Context, target babyjub.Point) (uint64, error) {
	start := time.Now()
	m, tried, err := search(ctx, target, r.Bound, r.Workers)
	if r.Observer != nil {
		r.Observer.ObserveSearch(time.Since(start), tried, err == nil)
	}
	log.Debug().
		Uint64("bound", r.Bound).
		Uint64("candidates", tried).
		Dur("elapsed", time.Since(start)).
		Bool("found", err == nil).
		Msg("discrete log search finished")
	return m, err
}

func (r *Recoverer) Recover(ctx context.Context, ct elgamal.Ciphertext, sk *big.Int) (uint64, error) {
	target, err := elgamal.Decode(sk, ct)
	if err != nil {
		return 0, err
	}
	return r.Search(ctx, target)
}

func (r *Recoverer) RecoverWithEscrow(ctx context.Context, c2 babyjub.Point, k *big.Int, pk babyjub.Point) (uint64, error) {
	return r.Search(ctx, escrowTarget(c2, k, pk))
}

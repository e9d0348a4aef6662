// pipeline.go - Input -> witness -> proof -> call data, persisted per stage.
//
// Every stage reads the artifact of the previous stage from the kind's
// workspace directory and writes its own, so an attempt can be resumed
// from the last completed stage. A failed stage is fatal to the attempt
// and is reported as a *StageError.

package pipeline

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"axiompay/internal/transactions"
)

var (
	// ErrUnknownKind is returned for kinds without a registered definition.
	ErrUnknownKind = errors.New("pipeline: no definition registered for kind")
	ErrStagePanic  = errors.New("pipeline: stage panicked")
)

// Observer receives one event per executed stage.
type Observer interface {
	ObserveStage(kind, stage string, elapsed time.Duration, err error)
}

// Pipeline runs the proof stages of every registered kind.
type Pipeline struct {
	Workspace Workspace
	Artifacts Artifacts
	Observer  Observer

	defs map[transactions.Kind]transactions.Definition

	mu   sync.Mutex
	keys map[transactions.Kind]*Keys
}

// New returns a pipeline for the given kind definitions.
func New(ws Workspace, art Artifacts, defs ...transactions.Definition) *Pipeline {
	p := &Pipeline{
		Workspace: ws,
		Artifacts: art,
		defs:      make(map[transactions.Kind]transactions.Definition, len(defs)),
		keys:      make(map[transactions.Kind]*Keys),
	}
	for _, d := range defs {
		p.defs[d.Kind] = d
	}
	return p
}

// Setup generates or loads the artifacts of every registered kind.
func (p *Pipeline) Setup() error {
	for _, kind := range transactions.Kinds {
		def, ok := p.defs[kind]
		if !ok {
			continue
		}
		keys, err := p.Artifacts.Setup(def)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.keys[kind] = keys
		p.mu.Unlock()
	}
	return nil
}

func (p *Pipeline) keysFor(kind transactions.Kind) (*Keys, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k, ok := p.keys[kind]; ok {
		return k, nil
	}
	k, err := p.Artifacts.Load(kind)
	if err != nil {
		return nil, err
	}
	p.keys[kind] = k
	return k, nil
}

// Run executes all four stages for a fresh attempt.
func (p *Pipeline) Run(ctx context.Context, in transactions.Input, env *transactions.Envelope) ([]byte, error) {
	if err := p.WriteInput(ctx, in, env); err != nil {
		return nil, err
	}
	return p.Resume(ctx, in.Kind())
}

// Resume continues the current attempt of kind after its last completed stage.
func (p *Pipeline) Resume(ctx context.Context, kind transactions.Kind) ([]byte, error) {
	st, err := p.Workspace.State(kind)
	if err != nil {
		return nil, err
	}
	if st.Completed == "" {
		return nil, &StageError{Kind: kind, Stage: StageInput, Err: errors.New("no input written")}
	}
	next, _ := st.Completed.next()
	if st.Completed == StageCalldata {
		next = StageCalldata
	}
	switch next {
	case StageWitness:
		if err := p.GenerateWitness(ctx, kind); err != nil {
			return nil, err
		}
		fallthrough
	case StageProof:
		if err := p.GenerateProof(ctx, kind); err != nil {
			return nil, err
		}
	}
	return p.ExportCalldata(ctx, kind)
}

// WriteInput starts a new attempt: it clears the kind's workspace and
// writes the input document and the envelope.
func (p *Pipeline) WriteInput(ctx context.Context, in transactions.Input, env *transactions.Envelope) error {
	kind := in.Kind()
	return p.stage(ctx, kind, StageInput, func() error {
		if _, ok := p.defs[kind]; !ok {
			return errors.Wrap(ErrUnknownKind, kind.String())
		}
		if env == nil {
			return errors.New("missing envelope")
		}
		if err := p.Workspace.reset(kind); err != nil {
			return err
		}
		if err := p.Workspace.writeJSON(kind, inputFile, in); err != nil {
			return err
		}
		return p.Workspace.writeJSON(kind, envelopeFile, env)
	})
}

// GenerateWitness solves the constraint system on the input document and
// writes the binary witness. Unsatisfiable inputs fail here.
func (p *Pipeline) GenerateWitness(ctx context.Context, kind transactions.Kind) error {
	return p.stage(ctx, kind, StageWitness, func() error {
		def, ok := p.defs[kind]
		if !ok {
			return errors.Wrap(ErrUnknownKind, kind.String())
		}
		raw, err := p.Workspace.readFile(kind, inputFile)
		if err != nil {
			return err
		}
		in, err := def.DecodeInput(raw)
		if err != nil {
			return err
		}
		keys, err := p.keysFor(kind)
		if err != nil {
			return err
		}
		w, err := frontend.NewWitness(in.Assignment(), ecc.BN254.ScalarField())
		if err != nil {
			return errors.Wrap(err, "build witness")
		}
		if err := keys.CS.IsSolved(w); err != nil {
			return errors.Wrap(err, "witness does not satisfy circuit")
		}
		bin, err := w.MarshalBinary()
		if err != nil {
			return errors.Wrap(err, "encode witness")
		}
		return p.Workspace.writeFile(kind, witnessFile, bin)
	})
}

// GenerateProof proves the witness and checks the proof against the
// verifying key before writing proof.json and public.json.
func (p *Pipeline) GenerateProof(ctx context.Context, kind transactions.Kind) error {
	return p.stage(ctx, kind, StageProof, func() error {
		keys, err := p.keysFor(kind)
		if err != nil {
			return err
		}
		bin, err := p.Workspace.readFile(kind, witnessFile)
		if err != nil {
			return err
		}
		w, err := witness.New(ecc.BN254.ScalarField())
		if err != nil {
			return err
		}
		if err := w.UnmarshalBinary(bin); err != nil {
			return errors.Wrap(err, "decode witness")
		}
		proof, err := groth16.Prove(keys.CS, keys.PK, w)
		if err != nil {
			return errors.Wrap(err, "prove")
		}
		public, err := w.Public()
		if err != nil {
			return errors.Wrap(err, "public witness")
		}
		if err := groth16.Verify(proof, keys.VK, public); err != nil {
			return errors.Wrap(err, "proof does not verify against verifying key")
		}
		cd, err := transactions.NewProofCalldata(proof, public)
		if err != nil {
			return err
		}
		if err := p.Workspace.writeJSON(kind, proofFile, newSnarkProof(cd)); err != nil {
			return err
		}
		return p.Workspace.writeJSON(kind, publicFile, decimals(cd.PubSignals))
	})
}

// ExportCalldata encodes proof.json, public.json and the envelope into
// the ledger call data of the kind.
func (p *Pipeline) ExportCalldata(ctx context.Context, kind transactions.Kind) ([]byte, error) {
	var out []byte
	err := p.stage(ctx, kind, StageCalldata, func() error {
		var sp snarkProof
		if err := p.Workspace.readJSON(kind, proofFile, &sp); err != nil {
			return err
		}
		var pub []string
		if err := p.Workspace.readJSON(kind, publicFile, &pub); err != nil {
			return err
		}
		var env transactions.Envelope
		if err := p.Workspace.readJSON(kind, envelopeFile, &env); err != nil {
			return err
		}
		cd, err := sp.calldata(pub)
		if err != nil {
			return err
		}
		proofBytes, err := cd.Pack()
		if err != nil {
			return err
		}
		out, err = transactions.EncodeBundle(kind, &env, proofBytes)
		return err
	})
	return out, err
}

// stage runs fn and records its outcome in state.json.
func (p *Pipeline) stage(ctx context.Context, kind transactions.Kind, stage Stage, fn func() error) error {
	start := time.Now()
	err := ctx.Err()
	if err == nil {
		err = protect(fn)
	}
	elapsed := time.Since(start)
	if p.Observer != nil {
		p.Observer.ObserveStage(kind.String(), string(stage), elapsed, err)
	}

	st := &State{Kind: kind}
	if prev, perr := p.Workspace.State(kind); perr == nil {
		st = prev
	}
	if err != nil {
		st.Failed, st.Error = stage, err.Error()
		if serr := p.Workspace.saveState(st); serr != nil {
			log.Warn().Err(serr).Str("kind", kind.String()).Msg("could not persist pipeline state")
		}
		log.Error().Err(err).Str("kind", kind.String()).Str("stage", string(stage)).Msg("pipeline stage failed")
		return &StageError{Kind: kind, Stage: stage, Err: err}
	}
	st.Completed, st.Failed, st.Error = stage, "", ""
	if err := p.Workspace.saveState(st); err != nil {
		return &StageError{Kind: kind, Stage: stage, Err: err}
	}
	log.Debug().Str("kind", kind.String()).Str("stage", string(stage)).Dur("elapsed", elapsed).Msg("pipeline stage done")
	return nil
}

// protect runs fn and turns a panic raised by the solver or prover into
// an error.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrStagePanic, "%v", r)
		}
	}()
	return fn()
}

func decimals(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"axiompay/internal/transactions"
)

const (
	inputFile    = "input.json"
	envelopeFile = "envelope.json"
	witnessFile  = "witness.wtns"
	proofFile    = "proof.json"
	publicFile   = "public.json"
	stateFile    = "state.json"
)

// Stage names a pipeline step.
type Stage string

const (
	StageInput    Stage = "input"
	StageWitness  Stage = "witness"
	StageProof    Stage = "proof"
	StageCalldata Stage = "calldata"
)

var stageOrder = []Stage{StageInput, StageWitness, StageProof, StageCalldata}

func (s Stage) next() (Stage, bool) {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// StageError reports the stage at which an attempt failed.
type StageError struct {
	Kind  transactions.Kind
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Kind) + ": " + string(e.Stage) + " stage failed: " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// State is the persisted progress of the current attempt of a kind.
type State struct {
	Kind      transactions.Kind `json:"kind"`
	Completed Stage             `json:"completed,omitempty"`
	Failed    Stage             `json:"failed,omitempty"`
	Error     string            `json:"error,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Workspace holds the per-kind working directories.
type Workspace struct {
	Root string
}

func (w Workspace) dir(kind transactions.Kind) string {
	return filepath.Join(w.Root, kind.String())
}

func (w Workspace) path(kind transactions.Kind, name string) string {
	return filepath.Join(w.dir(kind), name)
}

// State returns the persisted state of a kind, or an empty state if none exists.
func (w Workspace) State(kind transactions.Kind) (*State, error) {
	st := &State{Kind: kind}
	raw, err := os.ReadFile(w.path(kind, stateFile))
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read pipeline state")
	}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, errors.Wrap(err, "decode pipeline state")
	}
	return st, nil
}

func (w Workspace) saveState(st *State) error {
	st.UpdatedAt = time.Now().UTC()
	return w.writeJSON(st.Kind, stateFile, st)
}

// reset clears artifacts of a previous attempt.
func (w Workspace) reset(kind transactions.Kind) error {
	if err := os.MkdirAll(w.dir(kind), 0o755); err != nil {
		return errors.Wrap(err, "create workspace")
	}
	for _, name := range []string{inputFile, envelopeFile, witnessFile, proofFile, publicFile, stateFile} {
		if err := os.Remove(w.path(kind, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "remove %s", name)
		}
	}
	return nil
}

func (w Workspace) writeJSON(kind transactions.Kind, name string, v any) error {
	raw, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	return w.writeFile(kind, name, raw)
}

func (w Workspace) readJSON(kind transactions.Kind, name string, v any) error {
	raw, err := w.readFile(kind, name)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal(raw, v), "decode %s", name)
}

func (w Workspace) writeFile(kind transactions.Kind, name string, data []byte) error {
	if err := os.MkdirAll(w.dir(kind), 0o755); err != nil {
		return errors.Wrap(err, "create workspace")
	}
	return errors.Wrapf(os.WriteFile(w.path(kind, name), data, 0o600), "write %s", name)
}

func (w Workspace) readFile(kind transactions.Kind, name string) ([]byte, error) {
	raw, err := os.ReadFile(w.path(kind, name))
	return raw, errors.Wrapf(err, "read %s", name)
}

// artifacts.go - Circuit and key artifacts, one directory per transfer kind.
//
//	<dir>/<kind>/circuit.r1cs
//	<dir>/<kind>/proving.key
//	<dir>/<kind>/verifying.key
//
// Artifacts are written once by Setup and treated as immutable afterwards.

package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"axiompay/internal/transactions"
)

const (
	circuitFile      = "circuit.r1cs"
	provingKeyFile   = "proving.key"
	verifyingKeyFile = "verifying.key"
)

// Keys are the loaded artifacts of one kind.
type Keys struct {
	CS constraint.ConstraintSystem
	PK groth16.ProvingKey
	VK groth16.VerifyingKey
}

// Artifacts locates the per-kind artifact files.
type Artifacts struct {
	Dir string
}

func (a Artifacts) path(kind transactions.Kind, name string) string {
	return filepath.Join(a.Dir, kind.String(), name)
}

// Setup compiles the circuit of def and generates its Groth16 keys.
// Existing artifacts are loaded instead of regenerated.
func (a Artifacts) Setup(def transactions.Definition) (*Keys, error) {
	if keys, err := a.Load(def.Kind); err == nil {
		log.Info().Str("kind", def.Kind.String()).Msg("loaded existing circuit artifacts")
		return keys, nil
	}

	start := time.Now()
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, def.NewCircuit())
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s circuit", def.Kind)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, errors.Wrapf(err, "setup %s keys", def.Kind)
	}
	if err := os.MkdirAll(filepath.Join(a.Dir, def.Kind.String()), 0o755); err != nil {
		return nil, errors.Wrap(err, "create artifact directory")
	}
	for name, obj := range map[string]io.WriterTo{circuitFile: ccs, provingKeyFile: pk, verifyingKeyFile: vk} {
		if err := writeTo(a.path(def.Kind, name), obj); err != nil {
			return nil, err
		}
	}
	log.Info().
		Str("kind", def.Kind.String()).
		Int("constraints", ccs.GetNbConstraints()).
		Dur("elapsed", time.Since(start)).
		Msg("circuit artifacts generated")
	return &Keys{CS: ccs, PK: pk, VK: vk}, nil
}

// Load reads all three artifacts of a kind.
func (a Artifacts) Load(kind transactions.Kind) (*Keys, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if err := readFrom(a.path(kind, circuitFile), ccs); err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(a.path(kind, provingKeyFile), pk); err != nil {
		return nil, err
	}
	vk, err := a.LoadVerifyingKey(kind)
	if err != nil {
		return nil, err
	}
	return &Keys{CS: ccs, PK: pk, VK: vk}, nil
}

// LoadVerifyingKey reads only the verifying key of a kind.
func (a Artifacts) LoadVerifyingKey(kind transactions.Kind) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFrom(a.path(kind, verifyingKeyFile), vk); err != nil {
		return nil, err
	}
	return vk, nil
}

func writeTo(path string, obj io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	if _, err := obj.WriteTo(f); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func readFrom(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	if _, err := obj.ReadFrom(f); err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	return nil
}

package zk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"golang.org/x/sync/errgroup"

	"guesswho-zk/internal/log"
)

// Circuit holds the compiled constraint system and groth16 keys of one
// circuit. It is read-only once built and safe to share across goroutines.
type Circuit struct {
	ID CircuitID
	CS constraint.ConstraintSystem
	PK groth16.ProvingKey
	VK groth16.VerifyingKey
}

// System is the full proving toolchain: the three circuits with their keys.
type System struct {
	circuits [numCircuits]*Circuit
}

// Circuit returns the compiled circuit for id.
func (s *System) Circuit(id CircuitID) (*Circuit, error) {
	if !id.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCircuit, int(id))
	}
	c := s.circuits[id]
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeysNotReady, id)
	}
	return c, nil
}

// Prover returns a prover backed by s.
func (s *System) Prover() *Prover { return &Prover{sys: s} }

// Verifier returns a verifier using the verifying keys of s.
func (s *System) Verifier() *Verifier {
	v := &Verifier{}
	for id, c := range s.circuits {
		if c != nil {
			v.vks[id] = c.VK
		}
	}
	return v
}

// Compile compiles the circuit id into an R1CS over the BN254 scalar field.
func Compile(id CircuitID) (constraint.ConstraintSystem, error) {
	circuit, err := newCircuit(id)
	if err != nil {
		return nil, err
	}
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", id, err)
	}
	return cs, nil
}

// Setup compiles every circuit and runs an in-memory groth16 setup, one
// goroutine per circuit. The keys are not persisted.
func Setup(ctx context.Context) (*System, error) {
	return build(ctx, func(id CircuitID, cs constraint.ConstraintSystem) (*Circuit, error) {
		return setupCircuit(id, cs)
	}, nil)
}

// EnsureKeys loads the proving/verifying keys of every circuit from dir,
// running a fresh setup and writing the keys for any circuit whose key files
// are missing or unreadable. onReady, if not nil, is called once per circuit
// as soon as it is available; it may be called concurrently.
func EnsureKeys(ctx context.Context, dir string, onReady func(CircuitID)) (*System, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return build(ctx, func(id CircuitID, cs constraint.ConstraintSystem) (*Circuit, error) {
		pkPath, vkPath := keyPaths(dir, id)
		if pk, vk, err := readKeys(pkPath, vkPath); err == nil {
			log.Debugw("loaded circuit keys", "circuit", id.String(), "dir", dir)
			return &Circuit{ID: id, CS: cs, PK: pk, VK: vk}, nil
		}
		c, err := setupCircuit(id, cs)
		if err != nil {
			return nil, err
		}
		if err := writeKey(vkPath, c.VK); err != nil {
			return nil, err
		}
		if err := writeKey(pkPath, c.PK); err != nil {
			return nil, err
		}
		log.Infow("generated circuit keys", "circuit", id.String(), "dir", dir)
		return c, nil
	}, onReady)
}

func build(ctx context.Context, keys func(CircuitID, constraint.ConstraintSystem) (*Circuit, error), onReady func(CircuitID)) (*System, error) {
	sys := &System{}
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range Circuits {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cs, err := Compile(id)
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := keys(id, cs)
			if err != nil {
				return err
			}
			// each goroutine owns its own slot
			sys.circuits[id] = c
			if onReady != nil {
				onReady(id)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sys, nil
}

func setupCircuit(id CircuitID, cs constraint.ConstraintSystem) (*Circuit, error) {
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("setup %s: %w", id, err)
	}
	log.Debugw("circuit setup done", "circuit", id.String(), "constraints", cs.GetNbConstraints())
	return &Circuit{ID: id, CS: cs, PK: pk, VK: vk}, nil
}

// --- key IO helpers using io.WriterTo / io.ReaderFrom ---

func keyPaths(dir string, id CircuitID) (pk, vk string) {
	return filepath.Join(dir, id.String()+".pk"), filepath.Join(dir, id.String()+".vk")
}

// VerifyingKeyPath is where EnsureKeys stores the verifying key of id.
func VerifyingKeyPath(dir string, id CircuitID) string {
	_, vk := keyPaths(dir, id)
	return vk
}

func writeKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.WriteTo(f)
	return err
}

func readVK(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

func readPK(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func readKeys(pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	vk, err := readVK(vkPath)
	if err != nil {
		return nil, nil, err
	}
	pk, err := readPK(pkPath)
	if err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

// LoadVerifier reads only the verifying keys from dir. This is all a party
// that checks proofs but never produces them needs.
func LoadVerifier(dir string) (*Verifier, error) {
	v := &Verifier{}
	for _, id := range Circuits {
		vk, err := readVK(VerifyingKeyPath(dir, id))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrKeysNotReady, id, err)
		}
		v.vks[id] = vk
	}
	return v, nil
}

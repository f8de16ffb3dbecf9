package zk

import (
	"bytes"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
)

// Verifier checks proofs against the verifying keys of the three circuits.
// Verification is fast and deterministic; it is meant to run inline in a
// guarded state transition.
type Verifier struct {
	vks [numCircuits]groth16.VerifyingKey
}

// NewVerifier reads one serialized verifying key per circuit.
func NewVerifier(keys map[CircuitID]io.Reader) (*Verifier, error) {
	v := &Verifier{}
	for id, r := range keys {
		if !id.valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCircuit, int(id))
		}
		vk := groth16.NewVerifyingKey(ecc.BN254)
		if _, err := vk.ReadFrom(r); err != nil {
			return nil, fmt.Errorf("read %s verifying key: %w", id, err)
		}
		v.vks[id] = vk
	}
	return v, nil
}

func (v *Verifier) key(id CircuitID) (groth16.VerifyingKey, error) {
	if !id.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCircuit, int(id))
	}
	if v.vks[id] == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeysNotReady, id)
	}
	return v.vks[id], nil
}

// Verify checks proof against the public values of assignment.
func (v *Verifier) Verify(id CircuitID, proof []byte, public frontend.Circuit) error {
	vk, err := v.key(id)
	if err != nil {
		return err
	}
	pubWit, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%s public witness: %w", id, err)
	}
	pr := groth16.NewProof(ecc.BN254)
	if _, err := pr.ReadFrom(bytes.NewReader(proof)); err != nil {
		return fmt.Errorf("%w: %s: malformed proof: %v", ErrVerificationFailed, id, err)
	}
	if err := groth16.Verify(pr, vk, pubWit); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrVerificationFailed, id, err)
	}
	return nil
}

func (v *Verifier) VerifySelection(proof []byte, hash fr.Element) error {
	var pub SelectionCircuit
	pub.Hash = commitment.BigInt(hash)
	return v.Verify(Selection, proof, &pub)
}

func (v *Verifier) VerifyQuestion(proof []byte, hash fr.Element, q game.Query, response uint8) error {
	var pub QuestionCircuit
	pub.Hash = commitment.BigInt(hash)
	pub.Type = q.Type
	pub.Characteristic = q.Characteristic
	pub.Response = response
	return v.Verify(Question, proof, &pub)
}

func (v *Verifier) VerifyGuess(proof []byte, hash fr.Element, guess game.Character, win uint8) error {
	var pub GuessCircuit
	pub.Hash = commitment.BigInt(hash)
	for i, g := range guess {
		pub.Guess[i] = g
	}
	pub.Win = win
	return v.Verify(Guess, proof, &pub)
}

// WriteVerifyingKey serializes the verifying key of id.
func (v *Verifier) WriteVerifyingKey(id CircuitID, w io.Writer) error {
	vk, err := v.key(id)
	if err != nil {
		return err
	}
	_, err = vk.WriteTo(w)
	return err
}

// ExportSolidity writes a Solidity verifier contract for id.
func (v *Verifier) ExportSolidity(id CircuitID, w io.Writer) error {
	vk, err := v.key(id)
	if err != nil {
		return err
	}
	return vk.ExportSolidity(w)
}

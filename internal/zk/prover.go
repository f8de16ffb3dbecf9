package zk

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
)

// Prover generates groth16 proofs for the game circuits. Proving is CPU
// bound and blocking; a Prover may be used from many goroutines at once.
type Prover struct {
	sys *System
}

// SelectionPublic are the public signals of a selection proof.
type SelectionPublic struct {
	Hash fr.Element
}

// QuestionPublic are the public signals of a question proof.
type QuestionPublic struct {
	Hash     fr.Element
	Query    game.Query
	Response uint8 // raw circuit bit
}

// GuessPublic are the public signals of a guess proof.
type GuessPublic struct {
	Hash  fr.Element
	Guess game.Character
	Win   uint8 // raw circuit bit
}

type SelectionProof struct {
	Proof  []byte
	Public SelectionPublic
}

type QuestionProof struct {
	Proof  []byte
	Public QuestionPublic
}

type GuessProof struct {
	Proof  []byte
	Public GuessPublic
}

// Prove solves the witness for assignment against circuit id and returns the
// serialized proof. Any unsatisfied constraint is reported as
// ErrConstraintViolation.
func (p *Prover) Prove(id CircuitID, assignment frontend.Circuit) ([]byte, error) {
	c, err := p.sys.Circuit(id)
	if err != nil {
		return nil, err
	}
	wit, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%s witness: %w", id, err)
	}
	proof, err := groth16.Prove(c.CS, c.PK, wit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConstraintViolation, id, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ProveSelection proves that character is on the board and commits to a
// hash recomputed from character and salt.
func (p *Prover) ProveSelection(character game.Character, salt fr.Element) (*SelectionProof, error) {
	hash := commitment.Commit(character, salt)
	var assign SelectionCircuit
	setSecret(&assign.Character, &assign.Salt, character, salt)
	assign.Hash = commitment.BigInt(hash)

	proof, err := p.Prove(Selection, &assign)
	if err != nil {
		return nil, err
	}
	return &SelectionProof{Proof: proof, Public: SelectionPublic{Hash: hash}}, nil
}

// ProveQuestion answers q about the secret character. hash is the commitment
// stored for the answering player; a stale hash makes proving fail.
func (p *Prover) ProveQuestion(character game.Character, salt, hash fr.Element, q game.Query) (*QuestionProof, error) {
	response := game.Bit(character.Answer(q))

	var assign QuestionCircuit
	setSecret(&assign.Character, &assign.Salt, character, salt)
	assign.Hash = commitment.BigInt(hash)
	assign.Type = q.Type
	assign.Characteristic = q.Characteristic
	assign.Response = response

	proof, err := p.Prove(Question, &assign)
	if err != nil {
		return nil, err
	}
	return &QuestionProof{
		Proof:  proof,
		Public: QuestionPublic{Hash: hash, Query: q, Response: response},
	}, nil
}

// ProveGuess produces the win/lose verdict for guess against the secret
// character committed in hash.
func (p *Prover) ProveGuess(character game.Character, salt, hash fr.Element, guess game.Character) (*GuessProof, error) {
	win := game.Bit(character.Matches(guess))

	var assign GuessCircuit
	setSecret(&assign.Character, &assign.Salt, character, salt)
	assign.Hash = commitment.BigInt(hash)
	for i, v := range guess {
		assign.Guess[i] = v
	}
	assign.Win = win

	proof, err := p.Prove(Guess, &assign)
	if err != nil {
		return nil, err
	}
	return &GuessProof{
		Proof:  proof,
		Public: GuessPublic{Hash: hash, Guess: guess, Win: win},
	}, nil
}

func setSecret(dst *[game.NumCharacteristics]frontend.Variable, saltDst *frontend.Variable, character game.Character, salt fr.Element) {
	for i, v := range character {
		dst[i] = v
	}
	*saltDst = commitment.BigInt(salt)
}

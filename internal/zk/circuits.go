package zk

import (
	"fmt"
	"strings"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"

	"guesswho-zk/internal/game"
)

// CircuitID names one of the three game circuits.
type CircuitID int

const (
	Selection CircuitID = iota
	Question
	Guess
	numCircuits
)

// Circuits lists every circuit in setup order.
var Circuits = []CircuitID{Selection, Question, Guess}

func (id CircuitID) String() string {
	switch id {
	case Selection:
		return "selection"
	case Question:
		return "question"
	case Guess:
		return "guess"
	}
	return fmt.Sprintf("circuit(%d)", int(id))
}

func (id CircuitID) valid() bool { return id >= 0 && id < numCircuits }

// ParseCircuitID is the inverse of String.
func ParseCircuitID(s string) (CircuitID, error) {
	for _, id := range Circuits {
		if strings.EqualFold(s, id.String()) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCircuit, s)
}

// newCircuit returns an empty circuit definition used for compilation.
func newCircuit(id CircuitID) (frontend.Circuit, error) {
	switch id {
	case Selection:
		return &SelectionCircuit{}, nil
	case Question:
		return &QuestionCircuit{}, nil
	case Guess:
		return &GuessCircuit{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownCircuit, int(id))
}

// --- gadgets shared by the three circuits ---

// commitmentHash computes Poseidon2-MD(salt, c0, c1, c2, c3), the in-circuit
// twin of commitment.Commit.
func commitmentHash(api frontend.API, salt frontend.Variable, character [game.NumCharacteristics]frontend.Variable) (frontend.Variable, error) {
	p, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return nil, err
	}
	h := hash.NewMerkleDamgardHasher(api, p, 0)
	h.Write(salt)
	h.Write(character[:]...)
	return h.Sum(), nil
}

// assertInRange constrains v to [0,3].
func assertInRange(api frontend.API, v frontend.Variable) {
	api.ToBinary(v, 2)
}

// encode packs an in-range character into a base-4 integer. The encoding is
// injective only once every characteristic was range checked.
func encode(api frontend.API, character [game.NumCharacteristics]frontend.Variable) frontend.Variable {
	enc := frontend.Variable(0)
	for _, v := range character {
		enc = api.Add(api.Mul(enc, game.NumVariants), v)
	}
	return enc
}

func encodeNative(c game.Character) int {
	enc := 0
	for _, v := range c {
		enc = enc*game.NumVariants + int(v)
	}
	return enc
}

// assertOnBoard asserts the character equals one of the board rows:
// prod_i (enc(character) - enc(row_i)) == 0.
func assertOnBoard(api frontend.API, character [game.NumCharacteristics]frontend.Variable) {
	for _, v := range character {
		assertInRange(api, v)
	}
	enc := encode(api, character)
	prod := frontend.Variable(1)
	for _, row := range game.Board {
		prod = api.Mul(prod, api.Sub(enc, encodeNative(row)))
	}
	api.AssertIsEqual(prod, 0)
}

// isEqual returns 1 if a == b, 0 otherwise.
func isEqual(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.IsZero(api.Sub(a, b))
}

// assertCommitted checks the board membership of the secret character and
// that its commitment equals the public hash.
func assertCommitted(api frontend.API, salt, publicHash frontend.Variable, character [game.NumCharacteristics]frontend.Variable) error {
	assertOnBoard(api, character)
	h, err := commitmentHash(api, salt, character)
	if err != nil {
		return err
	}
	api.AssertIsEqual(h, publicHash)
	return nil
}

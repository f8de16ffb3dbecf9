package zk

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"

	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
)

var salt231 = commitment.SaltFromUint64(231)

func vars(c game.Character) [game.NumCharacteristics]frontend.Variable {
	var out [game.NumCharacteristics]frontend.Variable
	for i, v := range c {
		out[i] = v
	}
	return out
}

func selectionAssignment(c game.Character, salt fr.Element, hash fr.Element) *SelectionCircuit {
	return &SelectionCircuit{
		Character: vars(c),
		Salt:      commitment.BigInt(salt),
		Hash:      commitment.BigInt(hash),
	}
}

func questionAssignment(c game.Character, salt fr.Element, q game.Query, response uint8) *QuestionCircuit {
	return &QuestionCircuit{
		Character:      vars(c),
		Salt:           commitment.BigInt(salt),
		Hash:           commitment.BigInt(commitment.Commit(c, salt)),
		Type:           q.Type,
		Characteristic: q.Characteristic,
		Response:       response,
	}
}

func guessAssignment(c game.Character, salt fr.Element, guess game.Character, win uint8) *GuessCircuit {
	return &GuessCircuit{
		Character: vars(c),
		Salt:      commitment.BigInt(salt),
		Hash:      commitment.BigInt(commitment.Commit(c, salt)),
		Guess:     vars(guess),
		Win:       win,
	}
}

func isSolved(circuit, assignment frontend.Circuit) error {
	return test.IsSolved(circuit, assignment, ecc.BN254.ScalarField())
}

func TestSelectionAcceptsEveryBoardCharacter(t *testing.T) {
	c := qt.New(t)
	for _, ch := range game.Board {
		hash := commitment.Commit(ch, salt231)
		err := isSolved(&SelectionCircuit{}, selectionAssignment(ch, salt231, hash))
		c.Assert(err, qt.IsNil, qt.Commentf("%v", ch))
	}
}

func TestSelectionRejects(t *testing.T) {
	c := qt.New(t)

	offBoard := game.Character{3, 2, 1, 1}
	err := isSolved(&SelectionCircuit{}, selectionAssignment(offBoard, salt231, commitment.Commit(offBoard, salt231)))
	c.Assert(err, qt.IsNotNil)

	outOfRange := game.Character{0, 1, 2, 4}
	err = isSolved(&SelectionCircuit{}, selectionAssignment(outOfRange, salt231, commitment.Commit(outOfRange, salt231)))
	c.Assert(err, qt.IsNotNil)

	valid := game.Character{3, 2, 1, 0}
	wrongHash := commitment.Commit(valid, commitment.SaltFromUint64(232))
	err = isSolved(&SelectionCircuit{}, selectionAssignment(valid, salt231, wrongHash))
	c.Assert(err, qt.IsNotNil)
}

func TestSelectionRejectsEveryOffBoardCharacter(t *testing.T) {
	c := qt.New(t)
	if testing.Short() {
		c.Skip("enumerates the full character space")
	}
	for enc := 0; enc < 256; enc++ {
		ch := game.Character{uint8(enc >> 6 & 3), uint8(enc >> 4 & 3), uint8(enc >> 2 & 3), uint8(enc & 3)}
		if game.IsOnBoard(ch) {
			continue
		}
		err := isSolved(&SelectionCircuit{}, selectionAssignment(ch, salt231, commitment.Commit(ch, salt231)))
		c.Assert(err, qt.IsNotNil, qt.Commentf("%v", ch))
	}
}

func TestQuestionResponse(t *testing.T) {
	c := qt.New(t)
	ch := game.Character{2, 0, 1, 3}

	tests := []struct {
		name     string
		query    game.Query
		response uint8
		ok       bool
	}{
		{"true question", game.Query{Type: 1, Characteristic: 0}, 1, true},
		{"lying on a true question", game.Query{Type: 1, Characteristic: 0}, 0, false},
		{"false question", game.Query{Type: 1, Characteristic: 3}, 0, true},
		{"lying on a false question", game.Query{Type: 1, Characteristic: 3}, 1, false},
		{"last type", game.Query{Type: 3, Characteristic: 3}, 1, true},
		{"non boolean response", game.Query{Type: 3, Characteristic: 2}, 2, false},
		{"characteristic out of range", game.Query{Type: 3, Characteristic: 4}, 0, false},
		{"type out of range", game.Query{Type: 5, Characteristic: 2}, 0, false},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			err := isSolved(&QuestionCircuit{}, questionAssignment(ch, salt231, tt.query, tt.response))
			if tt.ok {
				c.Assert(err, qt.IsNil)
			} else {
				c.Assert(err, qt.IsNotNil)
			}
		})
	}
}

func TestQuestionRejectsOffBoardSecret(t *testing.T) {
	c := qt.New(t)
	ch := game.Character{3, 2, 1, 1}
	err := isSolved(&QuestionCircuit{}, questionAssignment(ch, salt231, game.Query{Type: 0, Characteristic: 3}, 1))
	c.Assert(err, qt.IsNotNil)
}

func TestQuestionRejectsWrongHash(t *testing.T) {
	c := qt.New(t)
	ch := game.Character{2, 0, 1, 3}
	assign := questionAssignment(ch, salt231, game.Query{Type: 1, Characteristic: 1}, 0)
	assign.Hash = commitment.BigInt(commitment.Commit(ch, commitment.SaltFromUint64(1)))
	c.Assert(isSolved(&QuestionCircuit{}, assign), qt.IsNotNil)
}

func TestGuessVerdict(t *testing.T) {
	c := qt.New(t)
	ch := game.Character{3, 2, 1, 0}

	tests := []struct {
		name  string
		guess game.Character
		win   uint8
		ok    bool
	}{
		{"correct guess", game.Character{3, 2, 1, 0}, 1, true},
		{"claiming loss on a correct guess", game.Character{3, 2, 1, 0}, 0, false},
		{"wrong guess", game.Character{0, 1, 2, 3}, 0, true},
		{"claiming win on a wrong guess", game.Character{0, 1, 2, 3}, 1, false},
		{"one characteristic off", game.Character{3, 2, 1, 2}, 0, true},
		{"off board guess never wins", game.Character{3, 2, 1, 1}, 0, true},
		{"guess out of range", game.Character{0, 4, 2, 3}, 0, false},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			err := isSolved(&GuessCircuit{}, guessAssignment(ch, salt231, tt.guess, tt.win))
			if tt.ok {
				c.Assert(err, qt.IsNil)
			} else {
				c.Assert(err, qt.IsNotNil)
			}
		})
	}
}

func TestGuessRejectsOutOfRangeSecret(t *testing.T) {
	c := qt.New(t)
	ch := game.Character{0, 1, 2, 4}
	err := isSolved(&GuessCircuit{}, guessAssignment(ch, salt231, game.Character{0, 1, 2, 3}, 0))
	c.Assert(err, qt.IsNotNil)
}

func TestParseCircuitID(t *testing.T) {
	c := qt.New(t)
	for _, id := range Circuits {
		got, err := ParseCircuitID(id.String())
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, id)
	}
	_, err := ParseCircuitID("board")
	c.Assert(err, qt.ErrorIs, ErrUnknownCircuit)
}

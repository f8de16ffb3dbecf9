package zk

import (
	"github.com/consensys/gnark/frontend"

	"guesswho-zk/internal/game"
)

// GuessCircuit proves Win == (Guess == Character) element-wise for the
// character committed in Hash. The guess is only range checked; an off-board
// guess is a valid input that never wins.
type GuessCircuit struct {
	Character [game.NumCharacteristics]frontend.Variable `gnark:",secret"`
	Salt      frontend.Variable                         `gnark:",secret"`

	Hash  frontend.Variable                         `gnark:",public"`
	Guess [game.NumCharacteristics]frontend.Variable `gnark:",public"`
	Win   frontend.Variable                         `gnark:",public"`
}

func (c *GuessCircuit) Define(api frontend.API) error {
	if err := assertCommitted(api, c.Salt, c.Hash, c.Character); err != nil {
		return err
	}
	win := frontend.Variable(1)
	for i := range c.Guess {
		assertInRange(api, c.Guess[i])
		win = api.And(win, isEqual(api, c.Guess[i], c.Character[i]))
	}
	api.AssertIsEqual(c.Win, win)
	return nil
}

package zk

import (
	"github.com/consensys/gnark/frontend"

	"guesswho-zk/internal/game"
)

// SelectionCircuit proves knowledge of a board character and salt whose
// commitment is Hash, without revealing which character.
type SelectionCircuit struct {
	Character [game.NumCharacteristics]frontend.Variable `gnark:",secret"`
	Salt      frontend.Variable                         `gnark:",secret"`

	Hash frontend.Variable `gnark:",public"`
}

func (c *SelectionCircuit) Define(api frontend.API) error {
	return assertCommitted(api, c.Salt, c.Hash, c.Character)
}

package zk

import (
	"github.com/consensys/gnark/frontend"

	"guesswho-zk/internal/game"
)

// QuestionCircuit proves Response == (Character[Type] == Characteristic) for
// the character committed in Hash.
type QuestionCircuit struct {
	Character [game.NumCharacteristics]frontend.Variable `gnark:",secret"`
	Salt      frontend.Variable                         `gnark:",secret"`

	Hash           frontend.Variable `gnark:",public"`
	Type           frontend.Variable `gnark:",public"`
	Characteristic frontend.Variable `gnark:",public"`
	Response       frontend.Variable `gnark:",public"`
}

func (c *QuestionCircuit) Define(api frontend.API) error {
	if err := assertCommitted(api, c.Salt, c.Hash, c.Character); err != nil {
		return err
	}
	assertInRange(api, c.Type)
	assertInRange(api, c.Characteristic)

	// selected = Character[Type], as a sum of indicator-weighted entries.
	selected := frontend.Variable(0)
	for i := range c.Character {
		selected = api.Add(selected, api.Mul(isEqual(api, c.Type, i), c.Character[i]))
	}
	api.AssertIsEqual(c.Response, isEqual(api, selected, c.Characteristic))
	return nil
}

// Package codec holds the JSON shapes shared by the CLI files and the HTTP API.
// Field elements travel as 0x-prefixed hex strings, proofs as base64.
package codec

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
	"guesswho-zk/internal/zk"
)

// Secret is a player's private selection. It never leaves the player.
type Secret struct {
	Character game.Character `json:"character"`
	SaltHex   string         `json:"salt_hex"`
	HashHex   string         `json:"hash_hex"`
}

func NewSecret(character game.Character, salt fr.Element) Secret {
	return Secret{
		Character: character,
		SaltHex:   commitment.Hex(salt),
		HashHex:   commitment.Hex(commitment.Commit(character, salt)),
	}
}

// Open parses the salt and checks that it still matches the stored hash.
func (s Secret) Open() (salt, hash fr.Element, err error) {
	if salt, err = commitment.Parse(s.SaltHex); err != nil {
		return salt, hash, fmt.Errorf("salt: %w", err)
	}
	hash = commitment.Commit(s.Character, salt)
	if s.HashHex != "" {
		stored, err := commitment.Parse(s.HashHex)
		if err != nil {
			return salt, hash, fmt.Errorf("hash: %w", err)
		}
		if !stored.Equal(&hash) {
			return salt, hash, fmt.Errorf("secret does not match its hash %s", s.HashHex)
		}
	}
	return salt, hash, nil
}

// Public are the public signals of any of the three proofs. Response and Win
// are the raw circuit bits.
type Public struct {
	Hash     string          `json:"hash"`
	Query    *game.Query     `json:"query,omitempty"`
	Guess    *game.Character `json:"guess,omitempty"`
	Response *uint8          `json:"response,omitempty"`
	Win      *uint8          `json:"win,omitempty"`
}

type ProofPayload struct {
	Circuit string `json:"circuit"`
	Proof   []byte `json:"proof"`
	Public  Public `json:"public"`
}

func SelectionPayload(p *zk.SelectionProof) ProofPayload {
	return ProofPayload{
		Circuit: zk.Selection.String(),
		Proof:   p.Proof,
		Public:  Public{Hash: commitment.Hex(p.Public.Hash)},
	}
}

func QuestionPayload(p *zk.QuestionProof) ProofPayload {
	q, r := p.Public.Query, p.Public.Response
	return ProofPayload{
		Circuit: zk.Question.String(),
		Proof:   p.Proof,
		Public:  Public{Hash: commitment.Hex(p.Public.Hash), Query: &q, Response: &r},
	}
}

func GuessPayload(p *zk.GuessProof) ProofPayload {
	g, w := p.Public.Guess, p.Public.Win
	return ProofPayload{
		Circuit: zk.Guess.String(),
		Proof:   p.Proof,
		Public:  Public{Hash: commitment.Hex(p.Public.Hash), Guess: &g, Win: &w},
	}
}

// Verify checks the payload with v. If hashHex is not empty it overrides the
// hash carried in the payload, so a verifier can pin the commitment it trusts.
func (p ProofPayload) Verify(v *zk.Verifier, hashHex string) error {
	if hashHex == "" {
		hashHex = p.Public.Hash
	}
	hash, err := commitment.Parse(hashHex)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	id, err := zk.ParseCircuitID(p.Circuit)
	if err != nil {
		return err
	}
	switch id {
	case zk.Selection:
		return v.VerifySelection(p.Proof, hash)
	case zk.Question:
		if p.Public.Query == nil || p.Public.Response == nil {
			return fmt.Errorf("question payload needs query and response")
		}
		return v.VerifyQuestion(p.Proof, hash, *p.Public.Query, *p.Public.Response)
	default:
		if p.Public.Guess == nil || p.Public.Win == nil {
			return fmt.Errorf("guess payload needs guess and win")
		}
		return v.VerifyGuess(p.Proof, hash, *p.Public.Guess, *p.Public.Win)
	}
}

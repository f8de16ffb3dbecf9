package server

import (
	"github.com/ethereum/go-ethereum/common"

	"guesswho-zk/internal/codec"
	"guesswho-zk/internal/game"
	"guesswho-zk/internal/room"
)

type RoomInfo struct {
	ID    string     `json:"id"`
	Phase room.Phase `json:"phase"`
}

type JoinRequest struct {
	Account common.Address `json:"account"`
	Hash    string         `json:"hash"`
	Proof   []byte         `json:"proof"`
}

type AskRequest struct {
	Account common.Address `json:"account"`
	Query   game.Query     `json:"query"`
}

type GuessRequest struct {
	Account common.Address `json:"account"`
	Guess   game.Character `json:"guess"`
}

// AnswerRequest resolves a pending question (Bit is the response) or guess
// (Bit is the win verdict). Bit is the raw circuit output.
type AnswerRequest struct {
	Account common.Address `json:"account"`
	Bit     uint8          `json:"bit"`
	Proof   []byte         `json:"proof"`
}

type AccountRequest struct {
	Account common.Address `json:"account"`
}

type ProveRequest struct {
	Character game.Character `json:"character"`
	Salt      string         `json:"salt"`
	// Hash defaults to the commitment of Character and Salt.
	Hash  string          `json:"hash,omitempty"`
	Query *game.Query     `json:"query,omitempty"`
	Guess *game.Character `json:"guess,omitempty"`
}

type VerifyRequest struct {
	// Hash, if set, overrides the hash carried in Payload.
	Hash    string             `json:"hash,omitempty"`
	Payload codec.ProofPayload `json:"payload"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

type StatusResponse struct {
	StartedAt int64 `json:"startedAt"`
	Rooms     int   `json:"rooms"`
}

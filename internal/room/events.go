package room

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"guesswho-zk/internal/game"
)

type EventKind string

const (
	EventGameCreated      EventKind = "GameCreated"
	EventJoined           EventKind = "Joined"
	EventQuestionAsked    EventKind = "QuestionAsked"
	EventQuestionAnswered EventKind = "QuestionAnswered"
	EventGuess            EventKind = "Guess"
	EventGuessResponse    EventKind = "GuessResponse"
	EventGameQuitted      EventKind = "GameQuitted"
)

// Event is published after every accepted transition. Fields that do not
// apply to a kind are left zero.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Player   common.Address  `json:"player"`
	Query    *game.Query     `json:"query,omitempty"`
	Guess    *game.Character `json:"guess,omitempty"`
	Response uint8           `json:"response,omitempty"`
	Winner   *common.Address `json:"winner,omitempty"`
}

// SubscribeEvents delivers every event of the room to ch, in transition
// order. Transitions never wait for ch, but a subscriber that stops reading
// delays delivery to every other subscriber until it unsubscribes.
func (r *Room) SubscribeEvents(ch chan<- Event) event.Subscription {
	return r.feed.Subscribe(ch)
}

package room

import "fmt"

// Kind classifies why a transition was rejected so callers can pick a
// recovery: wait for the other player, resubmit, or abandon.
type Kind uint8

const (
	KindPhase Kind = iota + 1
	KindTurn
	KindProof
	KindPermission
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindPhase:
		return "phase"
	case KindTurn:
		return "turn"
	case KindProof:
		return "proof"
	case KindPermission:
		return "permission"
	case KindInput:
		return "input"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is returned by every rejected transition. A rejected transition never
// changes the room.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. A target with a
// reason only matches that exact reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Kind-only sentinels for errors.Is.
var (
	ErrWrongPhase   = &Error{Kind: KindPhase}
	ErrNotYourTurn  = &Error{Kind: KindTurn}
	ErrInvalidProof = &Error{Kind: KindProof}
	ErrNotAllowed   = &Error{Kind: KindPermission}
	ErrBadInput     = &Error{Kind: KindInput}
)

const (
	ReasonNotStarted      = "game not started"
	ReasonRoomFull        = "game room already full"
	ReasonAlreadyJoined   = "player already joined"
	ReasonNotJoined       = "second player has not joined"
	ReasonFinished        = "game finished"
	ReasonNotPlayerTurn   = "not player turn"
	ReasonQuestionPending = "question is pending of answer"
	ReasonGuessPending    = "guess is pending of answer"
	ReasonPendingQuestion = "pending question answer"
	ReasonPendingGuess    = "pending guess answer"
	ReasonNotAnswerer     = "only current player turn can answer"
	ReasonNoAnswerPending = "no answer pending"
	ReasonOnlyOwnerReset  = "only owner can reset"
	ReasonOnlyPlayersQuit = "only owner or players can quit"
	ReasonInvalidProof    = "invalid proof"
	ReasonInvalidQuery    = "invalid query"
	ReasonInvalidGuess    = "invalid guess"
	ReasonInvalidResponse = "response must be 0 or 1"
	ReasonZeroAddress     = "zero address"
)

func reject(k Kind, reason string) error { return &Error{Kind: k, Reason: reason} }

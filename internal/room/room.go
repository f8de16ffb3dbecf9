// Package room is the two-player turn state machine. A Room plays the role of
// the ledger: it stores each player's commitment, sequences questions and
// guesses, and accepts an answer only with a proof that verifies against the
// answering player's commitment.
package room

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
	"guesswho-zk/internal/log"
)

type Phase uint8

const (
	PhaseEmpty Phase = iota
	PhaseCreated
	PhaseStarted
	PhaseQuestionPending
	PhaseGuessPending
	PhaseFinished
)

var phaseNames = [...]string{"empty", "created", "started", "question_pending", "guess_pending", "finished"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Verifier checks the three proofs a room accepts. *zk.Verifier implements it.
type Verifier interface {
	VerifySelection(proof []byte, hash fr.Element) error
	VerifyQuestion(proof []byte, hash fr.Element, q game.Query, response uint8) error
	VerifyGuess(proof []byte, hash fr.Element, guess game.Character, win uint8) error
}

type state struct {
	phase   Phase
	players [2]common.Address
	hashes  [2]fr.Element
	// asker indexes the player who raises the next (or the pending) query.
	asker        int
	query        game.Query
	guess        game.Character
	lastResponse uint8
	won          uint8
	winner       common.Address
}

// Room is safe for concurrent use. All transitions are serialized; two racing
// calls see each other's effects through the precondition checks.
type Room struct {
	owner    common.Address
	verifier Verifier

	mu sync.RWMutex
	st state
	// queue holds accepted events not yet handed to the feed; dispatching is
	// true while a dispatch goroutine drains it. Both are guarded by mu.
	queue       []Event
	dispatching bool
	feed        event.Feed
}

// New returns an empty room. owner is the only identity allowed to Reset it.
func New(owner common.Address, verifier Verifier) *Room {
	return &Room{owner: owner, verifier: verifier, st: emptyState()}
}

func emptyState() state {
	return state{lastResponse: game.ResponseNone, won: game.ResponseNone}
}

// transition applies mut to a copy of the state and commits the copy only if
// mut succeeds. The returned event, if any, is queued in transition order and
// published by a dispatch goroutine without holding mu.
func (r *Room) transition(mut func(*state) (*Event, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.st
	ev, err := mut(&next)
	if err != nil {
		return err
	}
	r.st = next
	if ev != nil {
		r.queue = append(r.queue, *ev)
		if !r.dispatching {
			r.dispatching = true
			go r.dispatch()
		}
	}
	return nil
}

// dispatch sends queued events to the feed until the queue is empty.
func (r *Room) dispatch() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.dispatching = false
			r.mu.Unlock()
			return
		}
		ev := r.queue[0]
		r.queue[0] = Event{}
		r.queue = r.queue[1:]
		r.mu.Unlock()
		r.feed.Send(ev)
	}
}

func (s *state) index(addr common.Address) int {
	if s.phase == PhaseEmpty {
		return -1
	}
	for i, p := range s.players {
		if p == addr && (i == 0 || s.phase != PhaseCreated) {
			return i
		}
	}
	return -1
}

func (s *state) answerer() int { return 1 - s.asker }

func (r *Room) verify(err error) error {
	if err != nil {
		return &Error{Kind: KindProof, Reason: ReasonInvalidProof, Err: err}
	}
	return nil
}

// CreateOrJoin registers caller with its commitment hash. The first caller of
// an empty (or finished) room creates it; the second, distinct caller joins
// and starts the game. The selection proof must verify against hash.
func (r *Room) CreateOrJoin(caller common.Address, hash fr.Element, proof []byte) error {
	if caller == (common.Address{}) {
		return reject(KindInput, ReasonZeroAddress)
	}
	return r.transition(func(s *state) (*Event, error) {
		switch s.phase {
		case PhaseEmpty, PhaseFinished:
			if err := r.verify(r.verifier.VerifySelection(proof, hash)); err != nil {
				return nil, err
			}
			*s = emptyState()
			s.phase = PhaseCreated
			s.players[0] = caller
			s.hashes[0] = hash
			// the joiner asks first; until then the creator is the answering side
			s.asker = 1
			log.Infow("game created", "creator", caller.Hex(), "hash", commitment.Hex(hash))
			return &Event{Kind: EventGameCreated, Player: caller}, nil
		case PhaseCreated:
			if s.players[0] == caller {
				return nil, reject(KindPermission, ReasonAlreadyJoined)
			}
			if err := r.verify(r.verifier.VerifySelection(proof, hash)); err != nil {
				return nil, err
			}
			s.phase = PhaseStarted
			s.players[1] = caller
			s.hashes[1] = hash
			log.Infow("game started", "creator", s.players[0].Hex(), "joiner", caller.Hex())
			return &Event{Kind: EventJoined, Player: caller}, nil
		default:
			if s.index(caller) >= 0 {
				return nil, reject(KindPermission, ReasonAlreadyJoined)
			}
			return nil, reject(KindPhase, ReasonRoomFull)
		}
	})
}

// askable checks the shared preconditions of Ask and Guess.
func (s *state) askable(caller common.Address, question bool) error {
	switch s.phase {
	case PhaseEmpty:
		return reject(KindPhase, ReasonNotStarted)
	case PhaseCreated:
		return reject(KindPhase, ReasonNotJoined)
	case PhaseFinished:
		return reject(KindPhase, ReasonFinished)
	case PhaseQuestionPending:
		if question {
			return reject(KindPhase, ReasonQuestionPending)
		}
		return reject(KindPhase, ReasonPendingQuestion)
	case PhaseGuessPending:
		if question {
			return reject(KindPhase, ReasonPendingGuess)
		}
		return reject(KindPhase, ReasonGuessPending)
	}
	if s.index(caller) != s.asker {
		return reject(KindTurn, ReasonNotPlayerTurn)
	}
	return nil
}

// Ask raises a characteristic query. Only the asking player may call it and
// only when nothing is pending.
func (r *Room) Ask(caller common.Address, q game.Query) error {
	return r.transition(func(s *state) (*Event, error) {
		if err := s.askable(caller, true); err != nil {
			return nil, err
		}
		if err := q.Validate(); err != nil {
			return nil, &Error{Kind: KindInput, Reason: ReasonInvalidQuery, Err: err}
		}
		s.phase = PhaseQuestionPending
		s.query = q
		s.lastResponse = game.ResponsePending
		log.Debugw("question asked", "player", caller.Hex(), "type", q.Type, "characteristic", q.Characteristic)
		return &Event{Kind: EventQuestionAsked, Player: caller, Query: &q}, nil
	})
}

// Guess raises a guess of the opponent's character. The guess is range
// checked but need not be on the board; an off-board guess never wins.
func (r *Room) Guess(caller common.Address, guess game.Character) error {
	return r.transition(func(s *state) (*Event, error) {
		if err := s.askable(caller, false); err != nil {
			return nil, err
		}
		if !guess.InRange() {
			return nil, &Error{Kind: KindInput, Reason: ReasonInvalidGuess, Err: game.ErrOutOfRange}
		}
		s.phase = PhaseGuessPending
		s.guess = guess
		s.won = game.ResponsePending
		log.Debugw("guess raised", "player", caller.Hex(), "guess", guess.String())
		return &Event{Kind: EventGuess, Player: caller, Guess: &guess}, nil
	})
}

func (s *state) answerable(caller common.Address, pending Phase, bit uint8) error {
	if s.phase != pending {
		if s.phase == PhaseEmpty {
			return reject(KindPhase, ReasonNotStarted)
		}
		return reject(KindPhase, ReasonNoAnswerPending)
	}
	if s.index(caller) != s.answerer() {
		return reject(KindTurn, ReasonNotAnswerer)
	}
	if bit > 1 {
		return reject(KindInput, ReasonInvalidResponse)
	}
	return nil
}

// Respond answers the pending question with the raw response bit and a
// question proof bound to the answerer's commitment. The asking role then
// passes to the answerer.
func (r *Room) Respond(caller common.Address, response uint8, proof []byte) error {
	return r.transition(func(s *state) (*Event, error) {
		if err := s.answerable(caller, PhaseQuestionPending, response); err != nil {
			return nil, err
		}
		hash := s.hashes[s.answerer()]
		if err := r.verify(r.verifier.VerifyQuestion(proof, hash, s.query, response)); err != nil {
			return nil, err
		}
		s.lastResponse = game.EncodeResponse(response)
		s.phase = PhaseStarted
		s.asker = s.answerer()
		log.Debugw("question answered", "player", caller.Hex(), "response", s.lastResponse)
		return &Event{Kind: EventQuestionAnswered, Player: caller, Response: s.lastResponse}, nil
	})
}

// IsWon resolves the pending guess with the raw win bit and a guess proof.
// The game finishes: the guesser wins on a match, the answerer otherwise.
func (r *Room) IsWon(caller common.Address, win uint8, proof []byte) error {
	return r.transition(func(s *state) (*Event, error) {
		if err := s.answerable(caller, PhaseGuessPending, win); err != nil {
			return nil, err
		}
		hash := s.hashes[s.answerer()]
		if err := r.verify(r.verifier.VerifyGuess(proof, hash, s.guess, win)); err != nil {
			return nil, err
		}
		s.won = game.EncodeResponse(win)
		if win == 1 {
			s.winner = s.players[s.asker]
		} else {
			s.winner = s.players[s.answerer()]
		}
		s.phase = PhaseFinished
		winner := s.winner
		log.Infow("game finished", "winner", winner.Hex(), "won", s.won)
		return &Event{Kind: EventGuessResponse, Player: caller, Response: s.won, Winner: &winner}, nil
	})
}

// Reset returns the room to empty. Only the owner may reset; resetting an
// empty room is a no-op.
func (r *Room) Reset(caller common.Address) error {
	if caller == (common.Address{}) || caller != r.owner {
		return reject(KindPermission, ReasonOnlyOwnerReset)
	}
	return r.transition(func(s *state) (*Event, error) {
		if s.phase == PhaseEmpty {
			return nil, nil
		}
		*s = emptyState()
		log.Debugw("room reset", "owner", caller.Hex())
		return &Event{Kind: EventGameQuitted, Player: caller}, nil
	})
}

// Quit abandons the game and empties the room. The owner or either player
// may quit.
func (r *Room) Quit(caller common.Address) error {
	return r.transition(func(s *state) (*Event, error) {
		isOwner := caller != (common.Address{}) && caller == r.owner
		if !isOwner && s.index(caller) < 0 {
			return nil, reject(KindPermission, ReasonOnlyPlayersQuit)
		}
		if s.phase == PhaseEmpty {
			return nil, nil
		}
		*s = emptyState()
		log.Debugw("player quit", "player", caller.Hex())
		return &Event{Kind: EventGameQuitted, Player: caller}, nil
	})
}

func (r *Room) read() state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st
}

func (r *Room) Owner() common.Address { return r.owner }
func (r *Room) Phase() Phase          { return r.read().phase }

func (r *Room) IsCreated() bool { return r.read().phase != PhaseEmpty }

// IsStarted reports whether both players have joined a game that is not
// finished.
func (r *Room) IsStarted() bool {
	switch r.read().phase {
	case PhaseStarted, PhaseQuestionPending, PhaseGuessPending:
		return true
	}
	return false
}

func (r *Room) IsPlayerInGame(addr common.Address) bool {
	s := r.read()
	return s.index(addr) >= 0
}

// IsQuestionTurn reports whether addr holds the asking role.
func (r *Room) IsQuestionTurn(addr common.Address) bool {
	s := r.read()
	return s.phase != PhaseFinished && s.index(addr) == s.asker
}

// IsAnswerTurn reports whether addr holds the answering role. Before the
// second player joins the creator is the answering side.
func (r *Room) IsAnswerTurn(addr common.Address) bool {
	s := r.read()
	return s.phase != PhaseFinished && s.index(addr) == s.answerer() && s.index(addr) >= 0
}

func (r *Room) LastType() uint8           { return r.read().query.Type }
func (r *Room) LastCharacteristic() uint8 { return r.read().query.Characteristic }
func (r *Room) LastQuery() game.Query     { return r.read().query }

// LastResponse is the encoded answer of the latest question: ResponsePending
// while unanswered and ResponseNone before any question.
func (r *Room) LastResponse() uint8 { return r.read().lastResponse }

// LastGuess is the latest guess vector.
func (r *Room) LastGuess() game.Character { return r.read().guess }

// Won is the encoded verdict of the latest guess.
func (r *Room) Won() uint8 { return r.read().won }

func (r *Room) Winner() common.Address { return r.read().winner }

func (r *Room) IsWinner(addr common.Address) bool {
	s := r.read()
	return s.phase == PhaseFinished && s.winner == addr
}

// Players returns the creator and the joiner; unset slots are zero.
func (r *Room) Players() [2]common.Address {
	s := r.read()
	if s.phase == PhaseEmpty {
		return [2]common.Address{}
	}
	return s.players
}

// Hash returns the commitment of player i (0 creator, 1 joiner).
func (r *Room) Hash(i int) (fr.Element, bool) {
	s := r.read()
	if i < 0 || i > 1 || s.phase == PhaseEmpty || (i == 1 && s.phase == PhaseCreated) {
		return fr.Element{}, false
	}
	return s.hashes[i], true
}

// HashByAccount returns the commitment stored for addr.
func (r *Room) HashByAccount(addr common.Address) (fr.Element, bool) {
	s := r.read()
	i := s.index(addr)
	if i < 0 {
		return fr.Element{}, false
	}
	return s.hashes[i], true
}

// Snapshot is a consistent, JSON friendly view of the room.
type Snapshot struct {
	Phase        Phase             `json:"phase"`
	Owner        common.Address    `json:"owner"`
	Players      [2]common.Address `json:"players"`
	Hashes       [2]string         `json:"hashes"`
	Asker        common.Address    `json:"asker"`
	Answerer     common.Address    `json:"answerer"`
	Query        game.Query        `json:"query"`
	Guess        game.Character    `json:"guess"`
	LastResponse uint8             `json:"lastResponse"`
	Won          uint8             `json:"won"`
	Winner       common.Address    `json:"winner"`
}

func (r *Room) Snapshot() Snapshot {
	s := r.read()
	snap := Snapshot{
		Phase:        s.phase,
		Owner:        r.owner,
		Query:        s.query,
		Guess:        s.guess,
		LastResponse: s.lastResponse,
		Won:          s.won,
		Winner:       s.winner,
	}
	if s.phase == PhaseEmpty {
		return snap
	}
	n := 2
	if s.phase == PhaseCreated {
		n = 1
	}
	for i := 0; i < n; i++ {
		snap.Players[i] = s.players[i]
		snap.Hashes[i] = commitment.Hex(s.hashes[i])
	}
	snap.Asker = s.players[s.asker]
	snap.Answerer = s.players[s.answerer()]
	return snap
}

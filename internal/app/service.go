// Package app is the player side of the game. A Player owns an explicit
// session (account, secret character, salt) and turns game actions into
// proofs submitted to a ledger.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"

	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
	"guesswho-zk/internal/log"
	"guesswho-zk/internal/store"
	"guesswho-zk/internal/zk"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrNotStarted      = errors.New("game not started")
	ErrNotAnswerTurn   = errors.New("not answer turn")
	ErrNoAnswerPending = errors.New("no answer pending")
	ErrRoomFull        = errors.New("game room already full")
)

// Ledger is the public game state a player acts on. *room.Room implements it.
type Ledger interface {
	CreateOrJoin(caller common.Address, hash fr.Element, proof []byte) error
	Ask(caller common.Address, q game.Query) error
	Guess(caller common.Address, guess game.Character) error
	Respond(caller common.Address, response uint8, proof []byte) error
	IsWon(caller common.Address, win uint8, proof []byte) error
	Quit(caller common.Address) error

	IsStarted() bool
	IsPlayerInGame(addr common.Address) bool
	IsAnswerTurn(addr common.Address) bool
	LastQuery() game.Query
	LastGuess() game.Character
	LastResponse() uint8
	Won() uint8
	HashByAccount(addr common.Address) (fr.Element, bool)
}

// Session is everything a player must keep to prove statements about the
// character they committed to.
type Session struct {
	Account   common.Address
	Character game.Character
	Salt      fr.Element
	Room      string
}

// Hash is the commitment of the session's character.
func (s Session) Hash() fr.Element { return commitment.Commit(s.Character, s.Salt) }

type Player struct {
	session Session
	ledger  Ledger
	prover  *zk.Prover
	store   *store.Store
}

func NewPlayer(sess Session, ledger Ledger, prover *zk.Prover, st *store.Store) *Player {
	return &Player{session: sess, ledger: ledger, prover: prover, store: st}
}

// Create picks a fresh salt for character, creates or joins the room and, only
// if the ledger accepted the selection, saves the session and marks the
// account as playing. A failed Create leaves the store untouched.
func Create(ctx context.Context, account common.Address, character game.Character, roomID string,
	ledger Ledger, prover *zk.Prover, st *store.Store,
) (*Player, error) {
	if err := character.Validate(); err != nil {
		return nil, err
	}
	if ledger.IsStarted() {
		return nil, ErrRoomFull
	}
	salt, err := commitment.NewSalt()
	if err != nil {
		return nil, err
	}
	p := NewPlayer(Session{Account: account, Character: character, Salt: salt, Room: roomID}, ledger, prover, st)
	if err := p.CreateOrJoin(ctx); err != nil {
		return nil, err
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load resumes the stored session of account.
func Load(account common.Address, ledger Ledger, prover *zk.Prover, st *store.Store) (*Player, error) {
	sess, err := st.LoadSession(account)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return NewPlayer(Session{
		Account:   account,
		Character: sess.Character,
		Salt:      sess.Salt,
		Room:      sess.Room,
	}, ledger, prover, st), nil
}

func (p *Player) Session() Session { return p.session }

// Save persists the session and the playing flag.
func (p *Player) Save() error {
	sess := store.Session{Character: p.session.Character, Salt: p.session.Salt, Room: p.session.Room}
	if err := p.store.SaveSession(p.session.Account, sess); err != nil {
		return err
	}
	return p.store.SetPlaying(p.session.Account)
}

// CreateOrJoin proves the selection and submits it with the commitment.
func (p *Player) CreateOrJoin(ctx context.Context) error {
	res, err := prove(ctx, func() (*zk.SelectionProof, error) {
		return p.prover.ProveSelection(p.session.Character, p.session.Salt)
	})
	if err != nil {
		return fmt.Errorf("selection proof: %w", err)
	}
	if err := p.ledger.CreateOrJoin(p.session.Account, res.Public.Hash, res.Proof); err != nil {
		return err
	}
	log.Debugw("joined room", "account", p.session.Account.Hex(), "room", p.session.Room)
	return nil
}

func (p *Player) Question(q game.Query) error {
	return p.ledger.Ask(p.session.Account, q)
}

func (p *Player) Guess(guess game.Character) error {
	return p.ledger.Guess(p.session.Account, guess)
}

// AnswerAll answers whichever of question or guess is pending and returns the
// encoded response (ResponseFalse or ResponseTrue).
func (p *Player) AnswerAll(ctx context.Context) (uint8, error) {
	acct := p.session.Account
	if !p.ledger.IsStarted() {
		return 0, ErrNotStarted
	}
	if !p.ledger.IsAnswerTurn(acct) {
		return 0, ErrNotAnswerTurn
	}
	hash, ok := p.ledger.HashByAccount(acct)
	if !ok {
		return 0, ErrGameNotFound
	}

	switch {
	case p.ledger.LastResponse() == game.ResponsePending:
		q := p.ledger.LastQuery()
		res, err := prove(ctx, func() (*zk.QuestionProof, error) {
			return p.prover.ProveQuestion(p.session.Character, p.session.Salt, hash, q)
		})
		if err != nil {
			return 0, fmt.Errorf("question proof: %w", err)
		}
		if err := p.ledger.Respond(acct, res.Public.Response, res.Proof); err != nil {
			return 0, err
		}
		return game.EncodeResponse(res.Public.Response), nil
	case p.ledger.Won() == game.ResponsePending:
		guess := p.ledger.LastGuess()
		res, err := prove(ctx, func() (*zk.GuessProof, error) {
			return p.prover.ProveGuess(p.session.Character, p.session.Salt, hash, guess)
		})
		if err != nil {
			return 0, fmt.Errorf("guess proof: %w", err)
		}
		if err := p.ledger.IsWon(acct, res.Public.Win, res.Proof); err != nil {
			return 0, err
		}
		return game.EncodeResponse(res.Public.Win), nil
	}
	return 0, ErrNoAnswerPending
}

// Quit leaves the room and forgets the session.
func (p *Player) Quit() error {
	if err := p.ledger.Quit(p.session.Account); err != nil {
		return err
	}
	if err := p.store.ClearPlaying(p.session.Account); err != nil {
		return err
	}
	return p.store.ClearSession(p.session.Account)
}

func (p *Player) IsStarted() bool      { return p.ledger.IsStarted() }
func (p *Player) IsAnswerTurn() bool   { return p.ledger.IsAnswerTurn(p.session.Account) }
func (p *Player) IsPlayerInGame() bool { return p.ledger.IsPlayerInGame(p.session.Account) }

// prove runs fn on its own goroutine so a caller can stop waiting on ctx.
// The proof computation itself cannot be interrupted.
func prove[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

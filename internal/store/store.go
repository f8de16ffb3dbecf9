// Package store persists a player's local game state: the secret character
// and salt behind their commitment, and whether they are currently playing.
// Keys are prefixed by record kind:
//   - 's/' for sessions
//   - 'p/' for the playing flag
//
// Every operation is idempotent.
package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"

	"guesswho-zk/internal/game"
)

var (
	sessionPrefix = []byte("s/")
	playingPrefix = []byte("p/")
)

// ErrNotFound is returned when no session is stored for an account.
var ErrNotFound = errors.New("session not found")

// Session is what a player needs to keep producing proofs for a room they
// joined. Losing it means losing the game.
type Session struct {
	Character game.Character
	Salt      fr.Element
	Room      string
}

type record struct {
	Character [game.NumCharacteristics]uint8 `cbor:"1,keyasint"`
	Salt      []byte                         `cbor:"2,keyasint"`
	Room      string                         `cbor:"3,keyasint,omitempty"`
}

// Store is a pebble backed key-value store. It is safe for concurrent use.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the store in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// NewMemory returns a store that lives in memory only.
func NewMemory() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func key(prefix []byte, addr common.Address) []byte {
	return append(append([]byte{}, prefix...), addr.Bytes()...)
}

func (s *Store) get(k []byte) ([]byte, error) {
	data, closer, err := s.db.Get(k)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, data...), nil
}

// SaveSession stores sess for addr, replacing any previous session.
func (s *Store) SaveSession(addr common.Address, sess Session) error {
	salt := sess.Salt.Bytes()
	data, err := cbor.Marshal(record{Character: sess.Character, Salt: salt[:], Room: sess.Room})
	if err != nil {
		return err
	}
	return s.db.Set(key(sessionPrefix, addr), data, pebble.Sync)
}

// LoadSession returns the session of addr or ErrNotFound.
func (s *Store) LoadSession(addr common.Address) (Session, error) {
	data, err := s.get(key(sessionPrefix, addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, addr.Hex())
	}
	if err != nil {
		return Session{}, err
	}
	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", addr.Hex(), err)
	}
	var salt fr.Element
	if err := salt.SetBytesCanonical(rec.Salt); err != nil {
		return Session{}, fmt.Errorf("decode session %s salt: %w", addr.Hex(), err)
	}
	return Session{Character: rec.Character, Salt: salt, Room: rec.Room}, nil
}

func (s *Store) ClearSession(addr common.Address) error {
	return s.db.Delete(key(sessionPrefix, addr), pebble.Sync)
}

func (s *Store) SetPlaying(addr common.Address) error {
	return s.db.Set(key(playingPrefix, addr), []byte{1}, pebble.Sync)
}

func (s *Store) ClearPlaying(addr common.Address) error {
	return s.db.Delete(key(playingPrefix, addr), pebble.Sync)
}

func (s *Store) IsPlaying(addr common.Address) (bool, error) {
	_, err := s.get(key(playingPrefix, addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

package store

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
)

var alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")

func TestSessionLifecycle(t *testing.T) {
	c := qt.New(t)
	st, err := NewMemory()
	c.Assert(err, qt.IsNil)
	defer st.Close()

	_, err = st.LoadSession(alice)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	salt, err := commitment.NewSalt()
	c.Assert(err, qt.IsNil)
	sess := Session{Character: game.Character{3, 2, 1, 0}, Salt: salt, Room: "lobby"}
	c.Assert(st.SaveSession(alice, sess), qt.IsNil)
	c.Assert(st.SaveSession(alice, sess), qt.IsNil)

	got, err := st.LoadSession(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Character, qt.Equals, sess.Character)
	c.Assert(got.Salt.Equal(&salt), qt.IsTrue)
	c.Assert(got.Room, qt.Equals, "lobby")

	_, err = st.LoadSession(common.HexToAddress("0xb0b"))
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	c.Assert(st.ClearSession(alice), qt.IsNil)
	c.Assert(st.ClearSession(alice), qt.IsNil)
	_, err = st.LoadSession(alice)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestPlayingFlag(t *testing.T) {
	c := qt.New(t)
	st, err := NewMemory()
	c.Assert(err, qt.IsNil)
	defer st.Close()

	playing, err := st.IsPlaying(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(playing, qt.IsFalse)

	c.Assert(st.SetPlaying(alice), qt.IsNil)
	c.Assert(st.SetPlaying(alice), qt.IsNil)
	playing, err = st.IsPlaying(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(playing, qt.IsTrue)

	c.Assert(st.ClearPlaying(alice), qt.IsNil)
	c.Assert(st.ClearPlaying(alice), qt.IsNil)
	playing, err = st.IsPlaying(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(playing, qt.IsFalse)
}

func TestReopenKeepsSessions(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	st, err := Open(dir)
	c.Assert(err, qt.IsNil)

	sess := Session{Character: game.Character{0, 1, 2, 3}, Salt: commitment.SaltFromUint64(133)}
	c.Assert(st.SaveSession(alice, sess), qt.IsNil)
	c.Assert(st.SetPlaying(alice), qt.IsNil)
	c.Assert(st.Close(), qt.IsNil)

	st, err = Open(dir)
	c.Assert(err, qt.IsNil)
	defer st.Close()
	got, err := st.LoadSession(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Character, qt.Equals, sess.Character)
	c.Assert(got.Salt.Equal(&sess.Salt), qt.IsTrue)
	playing, err := st.IsPlaying(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(playing, qt.IsTrue)
}

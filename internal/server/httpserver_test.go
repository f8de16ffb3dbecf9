package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"guesswho-zk/internal/codec"
	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
	"guesswho-zk/internal/room"
	"guesswho-zk/internal/zk"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice = common.HexToAddress("0x000000000000000000000000000000000000000a")
	bob   = common.HexToAddress("0x000000000000000000000000000000000000000b")

	aliceChar = game.Character{3, 2, 1, 0}
	bobChar   = game.Character{0, 1, 2, 3}
	aliceSalt = commitment.Hex(commitment.SaltFromUint64(231))
	bobSalt   = commitment.Hex(commitment.SaltFromUint64(133))

	sysOnce sync.Once
	sys     *zk.System
	sysErr  error
)

func newServer(c *qt.C) *Server {
	sysOnce.Do(func() { sys, sysErr = zk.Setup(context.Background()) })
	c.Assert(sysErr, qt.IsNil)
	return New(Config{Owner: owner}, sys)
}

func do(c *qt.C, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](c *qt.C, rec *httptest.ResponseRecorder) T {
	var v T
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &v), qt.IsNil, qt.Commentf("%s", rec.Body.String()))
	return v
}

func errorCode(c *qt.C, rec *httptest.ResponseRecorder) int {
	return decodeBody[struct {
		Code int `json:"code"`
	}](c, rec).Code
}

func provePayload(c *qt.C, s *Server, circuit string, req ProveRequest) codec.ProofPayload {
	rec := do(c, s, http.MethodPost, "/v1/prove/"+circuit, req)
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("%s", rec.Body.String()))
	return decodeBody[codec.ProofPayload](c, rec)
}

func joinRoom(c *qt.C, s *Server, roomPath string, account common.Address, ch game.Character, salt string) *httptest.ResponseRecorder {
	p := provePayload(c, s, "selection", ProveRequest{Character: ch, Salt: salt})
	return do(c, s, http.MethodPost, roomPath+"/join", JoinRequest{Account: account, Hash: p.Public.Hash, Proof: p.Proof})
}

func newRoomPath(c *qt.C, s *Server) string {
	rec := do(c, s, http.MethodPost, RoomsEndpoint, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusCreated)
	info := decodeBody[RoomInfo](c, rec)
	c.Assert(info.Phase, qt.Equals, room.PhaseEmpty)
	return RoomsEndpoint + "/" + info.ID
}

func TestGameOverHTTP(t *testing.T) {
	c := qt.New(t)
	s := newServer(c)
	path := newRoomPath(c, s)

	c.Assert(joinRoom(c, s, path, alice, aliceChar, aliceSalt).Code, qt.Equals, http.StatusOK)
	rec := joinRoom(c, s, path, alice, aliceChar, aliceSalt)
	c.Assert(rec.Code, qt.Equals, http.StatusForbidden)
	c.Assert(errorCode(c, rec), qt.Equals, ErrNotAllowed.Code)

	rec = joinRoom(c, s, path, bob, bobChar, bobSalt)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	snap := decodeBody[room.Snapshot](c, rec)
	c.Assert(snap.Phase, qt.Equals, room.PhaseStarted)
	c.Assert(snap.Asker, qt.Equals, bob)

	q := game.Query{Type: 0, Characteristic: 1}
	rec = do(c, s, http.MethodPost, path+"/ask", AskRequest{Account: alice, Query: q})
	c.Assert(rec.Code, qt.Equals, http.StatusConflict)
	c.Assert(errorCode(c, rec), qt.Equals, ErrNotYourTurn.Code)
	c.Assert(do(c, s, http.MethodPost, path+"/ask", AskRequest{Account: bob, Query: q}).Code, qt.Equals, http.StatusOK)

	rec = do(c, s, http.MethodPost, path+"/guess", GuessRequest{Account: bob, Guess: aliceChar})
	c.Assert(rec.Code, qt.Equals, http.StatusConflict)
	c.Assert(errorCode(c, rec), qt.Equals, ErrWrongPhase.Code)

	// alice answers with a proof against her own commitment
	answer := provePayload(c, s, "question", ProveRequest{Character: aliceChar, Salt: aliceSalt, Query: &q})
	c.Assert(*answer.Public.Response, qt.Equals, uint8(0))

	rec = do(c, s, http.MethodPost, path+"/respond", AnswerRequest{Account: alice, Bit: 1, Proof: answer.Proof})
	c.Assert(rec.Code, qt.Equals, http.StatusUnprocessableEntity)
	c.Assert(errorCode(c, rec), qt.Equals, ErrInvalidProof.Code)

	rec = do(c, s, http.MethodPost, path+"/respond", AnswerRequest{Account: alice, Bit: 0, Proof: answer.Proof})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	snap = decodeBody[room.Snapshot](c, rec)
	c.Assert(snap.LastResponse, qt.Equals, game.ResponseFalse)
	c.Assert(snap.Asker, qt.Equals, alice)

	c.Assert(do(c, s, http.MethodPost, path+"/guess", GuessRequest{Account: alice, Guess: bobChar}).Code, qt.Equals, http.StatusOK)
	verdict := provePayload(c, s, "guess", ProveRequest{Character: bobChar, Salt: bobSalt, Guess: &bobChar})
	c.Assert(*verdict.Public.Win, qt.Equals, uint8(1))
	rec = do(c, s, http.MethodPost, path+"/won", AnswerRequest{Account: bob, Bit: 1, Proof: verdict.Proof})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)

	rec = do(c, s, http.MethodGet, path, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	snap = decodeBody[room.Snapshot](c, rec)
	c.Assert(snap.Phase, qt.Equals, room.PhaseFinished)
	c.Assert(snap.Won, qt.Equals, game.ResponseTrue)
	c.Assert(snap.Winner, qt.Equals, alice)

	rec = do(c, s, http.MethodPost, path+"/reset", AccountRequest{Account: alice})
	c.Assert(rec.Code, qt.Equals, http.StatusForbidden)
	rec = do(c, s, http.MethodPost, path+"/reset", AccountRequest{Account: owner})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(decodeBody[room.Snapshot](c, rec).Phase, qt.Equals, room.PhaseEmpty)
}

func TestBadRequests(t *testing.T) {
	c := qt.New(t)
	s := newServer(c)
	path := newRoomPath(c, s)

	rec := do(c, s, http.MethodGet, RoomsEndpoint+"/nope", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, rec), qt.Equals, ErrRoomNotFound.Code)

	req := httptest.NewRequest(http.MethodPost, path+"/ask", strings.NewReader("{"))
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, w), qt.Equals, ErrMalformedBody.Code)

	huge := `{"account":"` + strings.Repeat("a", maxBodySize) + `"}`
	req = httptest.NewRequest(http.MethodPost, path+"/ask", strings.NewReader(huge))
	w = httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)
	c.Assert(w.Code, qt.Equals, http.StatusRequestEntityTooLarge)
	c.Assert(errorCode(c, w), qt.Equals, ErrBodyTooLarge.Code)

	rec = do(c, s, http.MethodGet, "/v1/nope", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, rec), qt.Equals, ErrResourceNotFound.Code)

	rec = do(c, s, http.MethodPost, path+"/join", JoinRequest{Account: alice, Hash: "0xzz"})
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, rec), qt.Equals, ErrInvalidInput.Code)

	rec = do(c, s, http.MethodPost, path+"/join", JoinRequest{Account: alice, Hash: "0x1", Proof: []byte("garbage")})
	c.Assert(rec.Code, qt.Equals, http.StatusUnprocessableEntity)

	rec = do(c, s, http.MethodPost, "/v1/prove/selection", ProveRequest{Character: game.Character{3, 2, 1, 1}, Salt: aliceSalt})
	c.Assert(rec.Code, qt.Equals, http.StatusUnprocessableEntity)
	c.Assert(errorCode(c, rec), qt.Equals, ErrConstraintViolated.Code)

	rec = do(c, s, http.MethodPost, "/v1/prove/question", ProveRequest{Character: aliceChar, Salt: aliceSalt})
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)

	rec = do(c, s, http.MethodGet, "/v1/verifier/board", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, rec), qt.Equals, ErrUnknownCircuit.Code)
}

func TestRoomRegistry(t *testing.T) {
	c := qt.New(t)
	s := newServer(c)
	first := newRoomPath(c, s)
	newRoomPath(c, s)

	rooms := decodeBody[[]RoomInfo](c, do(c, s, http.MethodGet, RoomsEndpoint, nil))
	c.Assert(rooms, qt.HasLen, 2)
	status := decodeBody[StatusResponse](c, do(c, s, http.MethodGet, StatusEndpoint, nil))
	c.Assert(status.Rooms, qt.Equals, 2)

	c.Assert(do(c, s, http.MethodDelete, first+"?account="+alice.Hex(), nil).Code, qt.Equals, http.StatusForbidden)
	c.Assert(do(c, s, http.MethodDelete, first+"?account="+owner.Hex(), nil).Code, qt.Equals, http.StatusOK)
	c.Assert(do(c, s, http.MethodGet, first, nil).Code, qt.Equals, http.StatusNotFound)
	c.Assert(decodeBody[[]RoomInfo](c, do(c, s, http.MethodGet, RoomsEndpoint, nil)), qt.HasLen, 1)
}

func TestVerifierEndpoints(t *testing.T) {
	c := qt.New(t)
	s := newServer(c)

	rec := do(c, s, http.MethodGet, "/v1/verifier/selection", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	v, err := zk.NewVerifier(map[zk.CircuitID]io.Reader{zk.Selection: rec.Body})
	c.Assert(err, qt.IsNil)

	p := provePayload(c, s, "selection", ProveRequest{Character: aliceChar, Salt: aliceSalt})
	c.Assert(p.Verify(v, ""), qt.IsNil)

	rec = do(c, s, http.MethodGet, "/v1/verifier/guess?format=solidity", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), qt.Contains, "pragma solidity")

	rec = do(c, s, http.MethodPost, VerifyEndpoint, VerifyRequest{Payload: p})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(decodeBody[VerifyResponse](c, rec).Valid, qt.IsTrue)

	// pinning another commitment makes the same proof invalid
	rec = do(c, s, http.MethodPost, VerifyEndpoint, VerifyRequest{Payload: p, Hash: bobSalt})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(decodeBody[VerifyResponse](c, rec).Valid, qt.IsFalse)
}

func TestEventStream(t *testing.T) {
	c := qt.New(t)
	s := newServer(c)
	path := newRoomPath(c, s)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+path+"/events", nil)
	c.Assert(err, qt.IsNil)
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(resp.Header.Get("Content-Type"), qt.Equals, "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 64*1024), 1<<20)
	nextEvent := func() string {
		for lines.Scan() {
			if name, ok := strings.CutPrefix(lines.Text(), "event: "); ok {
				return name
			}
		}
		c.Fatalf("stream ended: %v", lines.Err())
		return ""
	}
	c.Assert(nextEvent(), qt.Equals, "snapshot")

	c.Assert(joinRoom(c, s, path, alice, aliceChar, aliceSalt).Code, qt.Equals, http.StatusOK)
	c.Assert(nextEvent(), qt.Equals, string(room.EventGameCreated))
	c.Assert(joinRoom(c, s, path, bob, bobChar, bobSalt).Code, qt.Equals, http.StatusOK)
	c.Assert(nextEvent(), qt.Equals, string(room.EventJoined))
	c.Assert(do(c, s, http.MethodPost, path+"/quit", AccountRequest{Account: bob}).Code, qt.Equals, http.StatusOK)
	c.Assert(nextEvent(), qt.Equals, string(room.EventGameQuitted))
}

// Package server exposes game rooms over HTTP. Each room is a room.Room; the
// server is the ledger both players submit proofs to.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"guesswho-zk/internal/codec"
	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/log"
	"guesswho-zk/internal/room"
	"guesswho-zk/internal/zk"
)

type Config struct {
	// Owner may reset and delete rooms.
	Owner common.Address
	Addr  string
}

type Server struct {
	cfg      Config
	sys      *zk.System
	verifier *zk.Verifier
	router   *chi.Mux
	startAt  int64

	mu    sync.RWMutex
	rooms map[string]*room.Room
}

func New(cfg Config, sys *zk.System) *Server {
	s := &Server{
		cfg:      cfg,
		sys:      sys,
		verifier: sys.Verifier(),
		startAt:  time.Now().UnixMilli(),
		rooms:    make(map[string]*room.Room),
	}
	s.initRouter()
	return s
}

// Routes returns the HTTP handler of the server.
func (s *Server) Routes() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// proving requests run for seconds; event streams extend their own write
	// deadline on every write
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	errc := make(chan error, 1)
	go func() {
		log.Infow("starting API server", "addr", s.cfg.Addr, "owner", s.cfg.Owner.Hex())
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) initRouter() {
	s.router = chi.NewRouter()
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrResourceNotFound.With(r.URL.Path).Write(w)
	})

	s.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) { httpWriteOK(w) })
	s.router.Get(StatusEndpoint, s.status)

	s.router.Post(RoomsEndpoint, s.newRoom)
	s.router.Get(RoomsEndpoint, s.listRooms)
	s.router.Get(RoomEndpoint, s.getRoom)
	s.router.Delete(RoomEndpoint, s.deleteRoom)
	s.router.Post(JoinEndpoint, s.join)
	s.router.Post(AskEndpoint, s.ask)
	s.router.Post(GuessEndpoint, s.guess)
	s.router.Post(RespondEndpoint, s.respond)
	s.router.Post(WonEndpoint, s.won)
	s.router.Post(ResetEndpoint, s.reset)
	s.router.Post(QuitEndpoint, s.quit)
	s.router.Get(EventsEndpoint, s.events)

	s.router.Get(VerifierEndpoint, s.verifyingKey)
	s.router.Post(ProveEndpoint, s.prove)
	s.router.Post(VerifyEndpoint, s.verify)
	for _, route := range s.router.Routes() {
		for method := range route.Handlers {
			log.Debugw("register handler", "endpoint", route.Pattern, "method", method)
		}
	}
}

// === rooms ===

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	id := chi.URLParam(r, RoomURLParam)
	s.mu.RLock()
	rm, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		ErrRoomNotFound.With(id).Write(w)
	}
	return rm, ok
}

// NewRoom registers an empty room and returns its id.
func (s *Server) NewRoom() string {
	id := uuid.New().String()
	s.mu.Lock()
	s.rooms[id] = room.New(s.cfg.Owner, s.verifier)
	s.mu.Unlock()
	log.Infow("room registered", "room", id)
	return id
}

// Room returns the room registered under id.
func (s *Server) Room(id string) (*room.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rm, ok := s.rooms[id]
	return rm, ok
}

func (s *Server) newRoom(w http.ResponseWriter, r *http.Request) {
	id := s.NewRoom()
	rm, _ := s.Room(id)
	httpWriteJSON(w, http.StatusCreated, RoomInfo{ID: id, Phase: rm.Phase()})
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	list := make([]RoomInfo, 0, len(s.rooms))
	for id, rm := range s.rooms {
		list = append(list, RoomInfo{ID: id, Phase: rm.Phase()})
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	httpWriteJSON(w, http.StatusOK, list)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httpWriteJSON(w, http.StatusOK, rm.Snapshot())
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	account := r.URL.Query().Get("account")
	if !common.IsHexAddress(account) || common.HexToAddress(account) != rm.Owner() {
		ErrNotAllowed.With("only owner can delete a room").Write(w)
		return
	}
	// players left in the room get a GameQuitted event
	if err := rm.Reset(rm.Owner()); err != nil {
		fromRoom(err).Write(w)
		return
	}
	s.mu.Lock()
	delete(s.rooms, chi.URLParam(r, RoomURLParam))
	s.mu.Unlock()
	httpWriteOK(w)
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req JoinRequest
	if !decode(w, r, &req) {
		return
	}
	hash, err := commitment.Parse(req.Hash)
	if err != nil {
		ErrInvalidInput.WithErr(err).Write(w)
		return
	}
	s.apply(w, rm, rm.CreateOrJoin(req.Account, hash, req.Proof))
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req AskRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, rm, rm.Ask(req.Account, req.Query))
}

func (s *Server) guess(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req GuessRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, rm, rm.Guess(req.Account, req.Guess))
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, rm, rm.Respond(req.Account, req.Bit, req.Proof))
}

func (s *Server) won(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, rm, rm.IsWon(req.Account, req.Bit, req.Proof))
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req AccountRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, rm, rm.Reset(req.Account))
}

func (s *Server) quit(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req AccountRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, rm, rm.Quit(req.Account))
}

// apply answers a transition with the resulting snapshot, or its rejection.
func (s *Server) apply(w http.ResponseWriter, rm *room.Room, err error) {
	if err != nil {
		fromRoom(err).Write(w)
		return
	}
	httpWriteJSON(w, http.StatusOK, rm.Snapshot())
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	n := len(s.rooms)
	s.mu.RUnlock()
	httpWriteJSON(w, http.StatusOK, StatusResponse{StartedAt: s.startAt, Rooms: n})
}

// === proofs ===

func circuitParam(w http.ResponseWriter, r *http.Request) (zk.CircuitID, bool) {
	id, err := zk.ParseCircuitID(chi.URLParam(r, CircuitURLParam))
	if err != nil {
		fromZK(err).Write(w)
		return 0, false
	}
	return id, true
}

// verifyingKey serves the raw verifying key, or a Solidity verifier contract
// with ?format=solidity.
func (s *Server) verifyingKey(w http.ResponseWriter, r *http.Request) {
	id, ok := circuitParam(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	contentType := "application/octet-stream"
	var err error
	if strings.EqualFold(r.URL.Query().Get("format"), "solidity") {
		contentType = "text/plain; charset=utf-8"
		err = s.verifier.ExportSolidity(id, &buf)
	} else {
		err = s.verifier.WriteVerifyingKey(id, &buf)
	}
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Warnw("failed to write verifying key", "error", err)
	}
}

func (s *Server) prove(w http.ResponseWriter, r *http.Request) {
	id, ok := circuitParam(w, r)
	if !ok {
		return
	}
	var req ProveRequest
	if !decode(w, r, &req) {
		return
	}
	salt, err := commitment.Parse(req.Salt)
	if err != nil {
		ErrInvalidInput.WithErr(err).Write(w)
		return
	}
	hash := commitment.Commit(req.Character, salt)
	if req.Hash != "" {
		if hash, err = commitment.Parse(req.Hash); err != nil {
			ErrInvalidInput.WithErr(err).Write(w)
			return
		}
	}

	prover := s.sys.Prover()
	var payload codec.ProofPayload
	switch id {
	case zk.Selection:
		var res *zk.SelectionProof
		if res, err = prover.ProveSelection(req.Character, salt); err == nil {
			payload = codec.SelectionPayload(res)
		}
	case zk.Question:
		if req.Query == nil {
			ErrInvalidInput.With("query required").Write(w)
			return
		}
		var res *zk.QuestionProof
		if res, err = prover.ProveQuestion(req.Character, salt, hash, *req.Query); err == nil {
			payload = codec.QuestionPayload(res)
		}
	case zk.Guess:
		if req.Guess == nil {
			ErrInvalidInput.With("guess required").Write(w)
			return
		}
		var res *zk.GuessProof
		if res, err = prover.ProveGuess(req.Character, salt, hash, *req.Guess); err == nil {
			payload = codec.GuessPayload(res)
		}
	}
	if err != nil {
		fromZK(err).Write(w)
		return
	}
	httpWriteJSON(w, http.StatusOK, payload)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decode(w, r, &req) {
		return
	}
	err := req.Payload.Verify(s.verifier, req.Hash)
	switch {
	case err == nil:
		httpWriteJSON(w, http.StatusOK, VerifyResponse{Valid: true})
	case errors.Is(err, zk.ErrVerificationFailed):
		httpWriteJSON(w, http.StatusOK, VerifyResponse{Valid: false})
	default:
		fromZK(err).Write(w)
	}
}

// === helpers ===

// maxBodySize caps request bodies; the largest is a proof payload of a few
// hundred bytes.
const maxBodySize = 64 << 10

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrBodyTooLarge.Write(w)
		} else {
			ErrMalformedBody.WithErr(err).Write(w)
		}
		return false
	}
	return true
}

func httpWriteJSON(w http.ResponseWriter, code int, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(jdata, '\n')); err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
}

func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"guesswho-zk/internal/log"
	"guesswho-zk/internal/room"
	"guesswho-zk/internal/zk"
)

// Error is written as {"error": ..., "code": ...} with HTTPstatus as the
// response status.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Err  string `json:"error"`
		Code int    `json:"code"`
	}{
		Err:  e.Err.Error(),
		Code: e.Code,
	})
}

func (e Error) Error() string { return e.Err.Error() }

func (e Error) Unwrap() error { return e.Err }

func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if e.HTTPstatus >= http.StatusInternalServerError {
		log.Errorw(e, "api internal error", "code", e.Code, "httpStatus", e.HTTPstatus)
	} else {
		log.Debugw("api error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	_, _ = w.Write(append(msg, '\n'))
}

func (e Error) With(s string) Error {
	return Error{Err: fmt.Errorf("%w: %v", e.Err, s), Code: e.Code, HTTPstatus: e.HTTPstatus}
}

func (e Error) WithErr(err error) Error {
	return Error{Err: fmt.Errorf("%w: %v", e.Err, err.Error()), Code: e.Code, HTTPstatus: e.HTTPstatus}
}

// Codes in 4xxxx are the caller's fault, 5xxxx the server's. Never reuse a code.
var (
	ErrResourceNotFound   = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: errors.New("resource not found")}
	ErrMalformedBody      = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: errors.New("malformed JSON body")}
	ErrBodyTooLarge       = Error{Code: 40005, HTTPstatus: http.StatusRequestEntityTooLarge, Err: errors.New("request body too large")}
	ErrRoomNotFound       = Error{Code: 40010, HTTPstatus: http.StatusNotFound, Err: errors.New("room not found")}
	ErrUnknownCircuit     = Error{Code: 40011, HTTPstatus: http.StatusNotFound, Err: errors.New("unknown circuit")}
	ErrInvalidInput       = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: errors.New("invalid input")}
	ErrNotAllowed         = Error{Code: 40301, HTTPstatus: http.StatusForbidden, Err: errors.New("not allowed")}
	ErrWrongPhase         = Error{Code: 40901, HTTPstatus: http.StatusConflict, Err: errors.New("wrong phase")}
	ErrNotYourTurn        = Error{Code: 40902, HTTPstatus: http.StatusConflict, Err: errors.New("not your turn")}
	ErrInvalidProof       = Error{Code: 42201, HTTPstatus: http.StatusUnprocessableEntity, Err: errors.New("invalid proof")}
	ErrConstraintViolated = Error{Code: 42202, HTTPstatus: http.StatusUnprocessableEntity, Err: errors.New("cannot prove statement")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: errors.New("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: errors.New("internal server error")}
	ErrStreamingUnsupported       = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: errors.New("streaming unsupported")}
)

// fromRoom maps a rejected room transition to its API error.
func fromRoom(err error) Error {
	var rerr *room.Error
	if !errors.As(err, &rerr) {
		return ErrGenericInternalServerError.WithErr(err)
	}
	switch rerr.Kind {
	case room.KindPhase:
		return ErrWrongPhase.WithErr(err)
	case room.KindTurn:
		return ErrNotYourTurn.WithErr(err)
	case room.KindPermission:
		return ErrNotAllowed.WithErr(err)
	case room.KindProof:
		return ErrInvalidProof.WithErr(err)
	default:
		return ErrInvalidInput.WithErr(err)
	}
}

// fromZK maps proving and verification failures to API errors.
func fromZK(err error) Error {
	switch {
	case errors.Is(err, zk.ErrConstraintViolation):
		return ErrConstraintViolated.WithErr(err)
	case errors.Is(err, zk.ErrVerificationFailed):
		return ErrInvalidProof.WithErr(err)
	case errors.Is(err, zk.ErrUnknownCircuit):
		return ErrUnknownCircuit.WithErr(err)
	}
	return ErrInvalidInput.WithErr(err)
}

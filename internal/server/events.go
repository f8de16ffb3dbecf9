package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"guesswho-zk/internal/log"
	"guesswho-zk/internal/room"
)

const (
	keepAliveInterval = 15 * time.Second
	// eventWriteTimeout bounds every write to a stream; a client that stops
	// reading is dropped and its subscription released.
	eventWriteTimeout = 10 * time.Second
)

// events streams the room as server-sent events: a "snapshot" event first,
// then one event per accepted transition, named after its kind.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		ErrStreamingUnsupported.Write(w)
		return
	}
	rc := http.NewResponseController(w)
	send := func(write func() error) bool {
		err := rc.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return false
		}
		if err := write(); err != nil {
			log.Debugw("event stream closed", "error", err)
			return false
		}
		return rc.Flush() == nil
	}

	ch := make(chan room.Event, 16)
	sub := rm.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if !send(func() error { return writeEvent(w, "snapshot", rm.Snapshot()) }) {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case err := <-sub.Err():
			if err != nil {
				log.Warnw("room subscription failed", "error", err)
			}
			return
		case ev := <-ch:
			if !send(func() error { return writeEvent(w, string(ev.Kind), ev) }) {
				return
			}
		case <-ticker.C:
			if !send(func() error {
				_, err := io.WriteString(w, ": keep-alive\n\n")
				return err
			}) {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}

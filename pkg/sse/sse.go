// Package sse streams Server-Sent Events. The storefront uses it for
// /api/menu/events, a text/event-stream of menu load snapshots for clients
// that cannot open a websocket.
//
//	stream := sse.New(w, r)
//	if stream == nil {
//	    return
//	}
//	ch, stop := subscribe()
//	defer stop()
//	_ = sse.Pump(stream, "snapshot", ch, 15*time.Second)
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrClosed is returned once the client has gone away.
var ErrClosed = errors.New("sse: client disconnected")

// Stream represents an active SSE connection to one client.
type Stream struct {
	w       http.ResponseWriter
	r       *http.Request
	flusher http.Flusher
	closed  bool
}

// New sets the SSE headers and returns a stream. It answers 500 and returns
// nil when w cannot flush.
func New(w http.ResponseWriter, r *http.Request) *Stream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, r: r, flusher: flusher}
}

// Send writes a named event with a JSON-encoded data payload.
func (s *Stream) Send(event string, data any) error {
	if s.IsClosed() {
		return ErrClosed
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		s.closed = true
		return ErrClosed
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line, used as a keepalive.
func (s *Stream) Comment(msg string) error {
	if s.IsClosed() {
		return ErrClosed
	}
	msg = strings.ReplaceAll(msg, "\n", " ")
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", msg); err != nil {
		s.closed = true
		return ErrClosed
	}
	s.flusher.Flush()
	return nil
}

// IsClosed reports whether the client has disconnected.
func (s *Stream) IsClosed() bool {
	if s == nil {
		return true
	}
	select {
	case <-s.r.Context().Done():
		s.closed = true
	default:
	}
	return s.closed
}

// Pump sends every value from ch as an event until the client disconnects
// or ch is closed. A comment is written every heartbeat while idle.
func Pump[T any](s *Stream, event string, ch <-chan T, heartbeat time.Duration) error {
	if s == nil {
		return ErrClosed
	}
	tick := time.NewTicker(heartbeat)
	defer tick.Stop()

	for {
		select {
		case <-s.r.Context().Done():
			s.closed = true
			return nil
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.Send(event, v); err != nil {
				return err
			}
		case <-tick.C:
			if err := s.Comment("keepalive"); err != nil {
				return err
			}
		}
	}
}

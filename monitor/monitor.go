// Package monitor serves the observability side channel: an SSE stream
// of broker events and a health check, over a plain HTTP listener kept
// entirely separate from the RESP port.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/onestore/picokv/broker"
)

// Server serves the monitor HTTP endpoints.
type Server struct {
	httpServer *http.Server
	broker     *broker.Broker
}

// New creates a monitor Server backed by b.
func New(b *broker.Broker) *Server {
	s := &Server{broker: b}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /events", s.handleSSE)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve starts the HTTP server on lis, returning once it stops.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("monitor: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("monitor: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

type eventJSON struct {
	ID       string   `json:"id"`
	Cmd      string   `json:"cmd"`
	Args     []string `json:"args"`
	Duration int64    `json:"duration_ns"`
	Error    string   `json:"error,omitempty"`
	Hot      bool     `json:"hot,omitempty"`
}

func eventToJSON(ev broker.Event) eventJSON {
	args := make([]string, len(ev.Args))
	copy(args, ev.Args)
	return eventJSON{
		ID:       ev.ID,
		Cmd:      ev.Cmd,
		Args:     args,
		Duration: ev.Duration,
		Error:    ev.Err,
		Hot:      ev.Hot,
	}
}

// handleSSE streams every published broker.Event to the client as a
// newline-delimited JSON server-sent-event, until the client
// disconnects or the broker channel is closed.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	ch, unsub := s.broker.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(eventToJSON(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

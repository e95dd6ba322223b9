// Package server implements the supervisor and per-connection handler:
// it binds the configured TCP port, bootstraps the keyspace from a
// snapshot file before accepting any connection, runs the periodic
// saver, and spawns one handler goroutine per accepted connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onestore/picokv/broker"
	"github.com/onestore/picokv/command"
	"github.com/onestore/picokv/config"
	"github.com/onestore/picokv/rdb"
	"github.com/onestore/picokv/store"
)

const saveInterval = 5 * time.Second

// Server is the supervisor: it owns the TCP listener, the keyspace,
// the dispatcher, and the broker every connection and background task
// shares.
type Server struct {
	cfg    config.Config
	store  *store.Store
	disp   *command.Dispatcher
	broker *broker.Broker

	mu  sync.Mutex
	lis net.Listener
}

// New creates a Server. It does not bind a port or touch disk; call
// ListenAndServe to do that.
func New(cfg config.Config, st *store.Store, disp *command.Dispatcher, b *broker.Broker) *Server {
	return &Server{cfg: cfg, store: st, disp: disp, broker: b}
}

// ListenAndServe bootstraps the keyspace (if a snapshot path is
// configured), starts the periodic saver, binds the TCP port, and
// accepts connections until ctx is cancelled or a fatal listener error
// occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if path := s.cfg.SnapshotPath(); path != "" {
		s.bootstrap(path)
	}

	lis, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("server: listen on port %d: %w", s.cfg.Port, err)
	}
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()

	if path := s.cfg.SnapshotPath(); path != "" {
		go s.saveLoop(ctx, path)
	}

	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// Close stops the listener, causing ListenAndServe to return.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Close()
}

// bootstrap loads the snapshot at path into the keyspace before the
// accept loop starts. A load failure aborts only the bootstrap; it
// never prevents the server from accepting connections afterward.
func (s *Server) bootstrap(path string) {
	entries, err := rdb.Load(path)
	if err != nil {
		log.Printf("server: bootstrap load: %v", err)
		return
	}
	s.store.Load(entries)
	log.Printf("server: loaded %d keys from %s", len(entries), path)
}

// saveLoop periodically persists the keyspace to path until ctx is
// cancelled. A save failure is logged and the loop continues on the
// next tick.
func (s *Server) saveLoop(ctx context.Context, path string) {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rdb.Save(path, s.store.Snapshot()); err != nil {
				log.Printf("server: save: %v", err)
			}
		}
	}
}

// handleConn owns one client connection end to end: read a frame,
// dispatch it, publish the resulting event, write the reply. A framing
// error closes the connection; a dispatch error becomes a reply value
// and the connection stays open.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	id := uuid.New().String()
	r := newConnReader(conn)

	for {
		frame, err := r.readFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("server: conn %s: %v", id, err)
			}
			return
		}

		reply, ev := s.disp.Dispatch(frame)
		ev.ID = id
		s.broker.Publish(ev)

		if err := writeReply(conn, reply); err != nil {
			log.Printf("server: conn %s: %v", id, err)
			return
		}
	}
}

// Package relay serves classified commands to game and UI clients over
// TCP, one JSON object per line. Every connected client receives every
// message; a client that errors or disconnects is dropped without
// disturbing the rest.
package relay

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/monitoring"
)

// Message is the wire payload, one per line. Timestamp is UNIX seconds
// with fractional precision, matching what the game clients parse.
type Message struct {
	Command   string  `json:"command"`
	Timestamp float64 `json:"timestamp"`
	Sequence  uint64  `json:"sequence"`
}

// Server is the TCP fan-out relay. It implements the pipeline's
// CommandSink so it can be attached directly.
type Server struct {
	mu       sync.Mutex
	listener net.Listener
	clients  map[net.Conn]struct{}
	sequence uint64
	last     string
	closed   bool
}

// NewServer creates an unstarted relay server.
func NewServer() *Server {
	return &Server{clients: make(map[net.Conn]struct{})}
}

// Listen binds the given TCP address and accepts clients until the
// context is cancelled. It blocks; run it in its own goroutine.
func (s *Server) Listen(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	monitoring.Logf("[relay] listening on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.addClient(conn)
	}
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) addClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		conn.Close()
		return
	}
	s.clients[conn] = struct{}{}
	monitoring.Logf("[relay] client connected: %s (%d total)", conn.RemoteAddr(), len(s.clients))
}

// OnCommand broadcasts one command to all connected clients. Clients
// whose writes fail are dropped. Implements pipeline.CommandSink.
func (s *Server) OnCommand(cmd eeg.Command, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.sequence++
	s.last = string(cmd)
	msg := Message{
		Command:   string(cmd),
		Timestamp: float64(ts.UnixNano()) / float64(time.Second),
		Sequence:  s.sequence,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		monitoring.Logf("[relay] marshal failed: %v", err)
		return
	}
	payload = append(payload, '\n')

	for conn := range s.clients {
		if _, err := conn.Write(payload); err != nil {
			monitoring.Logf("[relay] dropping client %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// Status reports client count, last command and sequence number.
func (s *Server) Status() (clients int, last string, sequence uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients), s.last, s.sequence
}

// Close drops all clients and stops accepting.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

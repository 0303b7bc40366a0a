// Package tcp implements the messaging server's TCP front end: one goroutine
// per accepted connection, a shared session directory and a single dispatcher
// over the persistence layer.
package tcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"msghub/internal/storage"
)

// Server accepts TCP connections and runs the dispatch loop for each one.
// Stop drains active connections before returning.
type Server struct {
	addr       string
	registry   *Registry
	dispatcher *Dispatcher
	logger     *slog.Logger

	quitChan chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	active   map[string]*ClientConnection
}

// NewServer wires a server over the given store. The eviction grace period
// is how long a removed user's session gets to read the account-removed
// notice before its connection is closed.
func NewServer(addr string, store storage.Store, evictGrace time.Duration, logger *slog.Logger) *Server {
	registry := NewRegistry()
	evictor := NewEvictor(registry, evictGrace, logger)
	return &Server{
		addr:       addr,
		registry:   registry,
		dispatcher: NewDispatcher(store, registry, evictor, logger),
		logger:     logger,
		quitChan:   make(chan struct{}),
		active:     make(map[string]*ClientConnection),
	}
}

// Start listens and accepts until Stop is called. It blocks; run it on its
// own goroutine when the caller has other work.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("server_started", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quitChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept_failed", "error", err.Error())
			continue
		}

		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(conn)
		}(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	client := NewClientConnection(conn, s.registry, s.logger)

	s.mu.Lock()
	s.active[client.ID] = client
	s.mu.Unlock()

	s.dispatcher.Serve(client)

	s.mu.Lock()
	delete(s.active, client.ID)
	s.mu.Unlock()
}

// Addr reports the bound listen address, empty before Start. Tests bind
// port 0 and read the real port back through this.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener, tears down every active connection and waits
// for their dispatch loops to finish.
func (s *Server) Stop() {
	close(s.quitChan)

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	conns := make([]*ClientConnection, 0, len(s.active))
	for _, c := range s.active {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	s.logger.Info("server_stopped")
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ASHISH26940/sharedvars/internal/client"
	"github.com/ASHISH26940/sharedvars/internal/journal"
	"github.com/ASHISH26940/sharedvars/internal/metrics"
	"github.com/ASHISH26940/sharedvars/internal/protocol"
	"github.com/ASHISH26940/sharedvars/internal/store"
	"github.com/ASHISH26940/sharedvars/internal/variant"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const maxAcceptDelay = time.Second

// State is the lifecycle position of a Server.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "stopped"
}

// Holds server configuration.
type Config struct {
	Addr string // TCP address to listen on, e.g. "127.0.0.1:8720". Port 0 picks a free port.
}

// Option customises a Server at Start.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithJournal records every applied wire command in j.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithMetrics reports command and store activity to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server owns the shared store, the listener and the accept goroutine.
type Server struct {
	store    *store.Store
	listener net.Listener
	logger   hclog.Logger
	journal  *journal.Journal
	metrics  *metrics.Metrics
	state    atomic.Int32
	done     chan struct{} // Closed when the accept goroutine exits.
	stop     chan struct{} // Closed by abort.

	mu      sync.Mutex
	active  net.Conn // Connection being read, if any.
	aborted bool
}

// Start binds cfg.Addr and spawns the accept goroutine. A bind failure is
// returned as is; the address is never retried.
func Start(cfg Config, opts ...Option) (*Server, error) {
	s := newServer(opts...)

	s.setState(StateStarting)
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.setState(StateStopped)
		return nil, fmt.Errorf("%w on %s: %w", ErrBind, cfg.Addr, err)
	}
	s.serve(listener)
	return s, nil
}

func newServer(opts ...Option) *Server {
	s := &Server{
		store:  store.NewStore(),
		logger: hclog.NewNullLogger(),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) serve(listener net.Listener) {
	s.listener = listener
	s.setState(StateRunning)

	s.logger.Info("variable server listening", "addr", s.Addr())

	go s.accept()
}

// Addr returns the address the listener is bound to.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(st State) {
	s.state.Store(int32(st))
}

// Add stores v under key, replacing any previous value.
func (s *Server) Add(key string, v variant.Variant) {
	s.store.Add(key, v)
	s.metrics.Entries(s.store.Len())
}

// Remove deletes key and returns its previous value, if any.
func (s *Server) Remove(key string) (variant.Variant, bool) {
	v, ok := s.store.Remove(key)
	if ok {
		s.metrics.Entries(s.store.Len())
	}
	return v, ok
}

// Get returns a copy of the value stored under key.
func (s *Server) Get(key string) (variant.Variant, bool) {
	return s.store.Get(key)
}

// Len returns the number of stored variables.
func (s *Server) Len() int {
	return s.store.Len()
}

// Quit sends the quit handshake to this server over the wire and waits for
// the accept goroutine to exit. It is the graceful way to stop the server.
// If ctx expires first, ctx.Err() is returned and the server may still be
// running.
func (s *Server) Quit(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	if err := client.SendQuit(ctx, s.Addr()); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the accept goroutine exits.
//
// The goroutine only exits on its own after a quit command. If nobody ever
// sends one, Wait never returns. Use Shutdown to bound the wait.
func (s *Server) Wait() {
	<-s.done
}

// Shutdown waits for the accept goroutine to exit. If ctx expires first, the
// listener and any in-flight connection are closed, Shutdown waits for the
// goroutine to finish and returns ctx.Err().
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
	}

	s.logger.Warn("shutdown deadline reached, closing listener")
	s.abort()
	<-s.done
	return ctx.Err()
}

// Close force-closes the listener and waits for the accept goroutine to exit.
func (s *Server) Close() error {
	s.abort()
	<-s.done
	return nil
}

func (s *Server) abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	active := s.active
	s.mu.Unlock()

	close(s.stop)

	s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	s.listener.Close()
	if active != nil {
		active.Close()
	}
}

func (s *Server) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Accepts connections one at a time until a quit command arrives or the
// listener is closed.
func (s *Server) accept() {
	defer func() {
		s.listener.Close()
		s.setState(StateStopped)
		s.logger.Info("variable server stopped")
		close(s.done)
	}()

	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isAborted() || errors.Is(err, net.ErrClosed) {
				return
			}
			delay = nextAcceptDelay(delay)
			s.logger.Error("accept error", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-s.stop:
				return
			}
			continue
		}
		delay = 0

		if s.handle(conn) == protocol.OpQuit {
			s.setState(StateStopping)
			s.logger.Info("quit received")
			return
		}
	}
}

// Backs off after a failed Accept the way net/http does: 5ms doubling up
// to one second, reset by the next successful Accept.
func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

// Processes a single connection and reports which op it carried.
//
// Reads until the peer closes, decodes one command and applies it. A
// malformed command is logged and dropped; it never stops the loop.
func (s *Server) handle(conn net.Conn) protocol.Op {
	defer conn.Close()

	id := uuid.NewString()
	logger := s.logger.With("conn", id, "remote", conn.RemoteAddr().String())
	s.metrics.Connection()

	if !s.track(conn) {
		return protocol.OpIgnore
	}
	defer s.untrack()

	msg, err := io.ReadAll(conn)
	if err != nil {
		logger.Warn("read error", "error", err)
		return protocol.OpIgnore
	}

	cmd, err := protocol.Decode(msg)
	if err != nil {
		logger.Warn("dropping malformed command", "error", err)
		s.metrics.Command(protocol.OpAdd.String(), metrics.ResultRejected)
		return protocol.OpIgnore
	}

	switch cmd.Op {
	case protocol.OpAdd, protocol.OpQuit:
		s.apply(id, cmd)
		logger.Debug("command applied", "op", cmd.Op, "name", cmd.Name)
	default:
		logger.Trace("ignoring unrecognised message", "bytes", len(msg))
		s.metrics.Command(cmd.Op.String(), metrics.ResultIgnored)
	}
	return cmd.Op
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return false
	}
	s.active = conn
	return true
}

func (s *Server) untrack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

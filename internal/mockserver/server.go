package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/tcpbmock/internal/protocol/session"
	"github.com/danmuck/tcpbmock/internal/trace"
	"github.com/rs/zerolog/log"
)

const (
	MinPort     = 1024
	MaxPort     = 65535
	DefaultHost = "127.0.0.1"
)

var (
	ErrInvalidPort    = errors.New("mockserver: invalid port")
	ErrAlreadyStarted = errors.New("mockserver: already started")
	ErrNotStarted     = errors.New("mockserver: not started")
)

// Config names the port and the two trace files of one fixture.
type Config struct {
	Host          string
	Port          int
	ExpectedTrace string
	ResponseTrace string
	Session       session.Config
}

// Server serves a single session. It is not reusable; build a new one per client.
type Server struct {
	cfg    Config
	engine *session.Engine

	mu      sync.Mutex
	ln      net.Listener
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	outcome session.Outcome
	err     error
}

// New loads both trace files and prepares a server on cfg.Port.
func New(cfg Config) (*Server, error) {
	if err := ValidatePort(cfg.Port); err != nil {
		return nil, err
	}
	expected, err := trace.LoadFile(cfg.ExpectedTrace)
	if err != nil {
		return nil, fmt.Errorf("mockserver: expected trace: %w", err)
	}
	responses, err := trace.LoadFile(cfg.ResponseTrace)
	if err != nil {
		return nil, fmt.Errorf("mockserver: response trace: %w", err)
	}
	return NewWithTraces(cfg, expected, responses)
}

// NewWithTraces prepares a server from already loaded traces.
func NewWithTraces(cfg Config, expected, responses trace.Trace) (*Server, error) {
	if err := ValidatePort(cfg.Port); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Session = cfg.Session.WithDefaults()
	engine, err := session.NewEngine(cfg.Session, expected, responses)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		engine: engine,
		done:   make(chan struct{}),
	}, nil
}

func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidPort, port, MinPort, MaxPort)
	}
	return nil
}

// Start binds the port and serves the session on its own goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("mockserver: listen %s: %w", addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ln = ln
	s.cancel = cancel
	s.started = true
	log.Info().Msgf("mockserver.Server.Start listening addr=%q session=%s", ln.Addr().String(), s.engine.ID())
	go s.serve(ctx, ln)
	return nil
}

func (s *Server) serve(ctx context.Context, ln net.Listener) {
	defer close(s.done)
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	started := time.Now()
	if dl, ok := ln.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dl.SetDeadline(started.Add(s.cfg.Session.AcceptTimeout))
	}
	conn, err := ln.Accept()
	if err != nil {
		s.finish(s.acceptFailure(ctx, started, err))
		return
	}
	// one client per server
	_ = ln.Close()
	log.Debug().Msgf("mockserver.Server.serve accepted remote=%q session=%s", conn.RemoteAddr().String(), s.engine.ID())

	out, err := s.engine.Run(ctx, conn)
	s.finish(out, err)
}

func (s *Server) acceptFailure(ctx context.Context, started time.Time, err error) (session.Outcome, error) {
	switch {
	case ctx.Err() != nil:
		err = fmt.Errorf("mockserver: accept: %w", ctx.Err())
	case isTimeout(err):
		err = fmt.Errorf("%w: accept after %s: %v", session.ErrTimeout, s.cfg.Session.AcceptTimeout, err)
	default:
		err = fmt.Errorf("mockserver: accept: %w", err)
	}
	log.Warn().Msgf("mockserver.Server.serve accept failed port=%d err=%v", s.cfg.Port, err)
	return session.Outcome{
		SessionID: s.engine.ID(),
		State:     session.StateFailed,
		Started:   started,
		Finished:  time.Now(),
		Err:       err,
	}, err
}

func (s *Server) finish(out session.Outcome, err error) {
	s.mu.Lock()
	s.outcome = out
	s.err = err
	s.mu.Unlock()
}

// Wait blocks until the session ends or ctx is done.
func (s *Server) Wait(ctx context.Context) (session.Outcome, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return session.Outcome{}, ErrNotStarted
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		return session.Outcome{}, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.err
}

// Done is closed once the session has ended and both sockets are released.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Close aborts a running session and releases the port. Safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()
	if !started {
		return nil
	}
	cancel()
	<-s.done
	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Port() int {
	return s.cfg.Port
}

func (s *Server) SessionID() string {
	return s.engine.ID()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

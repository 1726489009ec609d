package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 2000
)

var (
	ErrNotStarted = errors.New("Simulator has not been started")
)

// Simulator stands in for sensor hardware. It serves one client at a time:
// a connection is served to completion before the next one is accepted, so
// further clients wait in the listen backlog and are never interleaved.
type Simulator struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr      string
	reuseport bool
	trace     bool
	source    FrameSource

	mu       sync.Mutex
	listener net.Listener
	active   *Session

	log *zap.Logger
}

func NewSimulator(options Options) *Simulator {
	source := options.Source
	if source == nil {
		source = StaticFrame(ReferenceFrame)
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Simulator{
		addr:      net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport: options.Reuseport,
		trace:     options.Trace,
		source:    source,
		log:       log,
	}
}

// Start binds the listening socket and begins accepting clients in the
// background. It returns once the simulator is ready for connections.
func (s *Simulator) Start(parentCtx context.Context) error {
	listener, err := s.listen()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parentCtx)

	s.mu.Lock()
	s.listener = listener
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info("Simulated sensor listening", zap.String("addr", listener.Addr().String()))

	go func() {
		<-ctx.Done()

		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Warn("Listener did not close cleanly", zap.Error(err))
		}
	}()

	s.stopWaiter.Add(1)
	go func() {
		defer s.stopWaiter.Done()

		if err := s.acceptLoop(ctx, listener); err != nil {
			s.log.Error("Failed to accept", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the simulator is listening on, or nil before Start.
func (s *Simulator) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Active returns the session currently being served, if any.
func (s *Simulator) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// Close stops accepting, ends the active session and waits for both.
func (s *Simulator) Close() (err error) {
	s.mu.Lock()
	cancel, listener, active := s.cancel, s.listener, s.active
	s.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}

	s.log.Info("Stopping simulated sensor")
	cancel()

	if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = multierr.Append(err, cerr)
	}

	if active != nil {
		err = multierr.Append(err, active.Close())
	}

	s.stopWaiter.Wait()
	s.log.Info("Simulated sensor stopped")

	return err
}

func (s *Simulator) listen() (net.Listener, error) {
	if s.reuseport {
		return reuseport.Listen("tcp", s.addr)
	}

	return net.Listen("tcp", s.addr)
}

func (s *Simulator) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				s.log.Info("Stopped accepting new connections")
				return nil
			}

			return err
		}

		log := s.log.Named("session").With(zap.String("remote", conn.RemoteAddr().String()))
		log.Info("Client connected")

		session := NewSession(ctx, conn, s.source, s.trace, log)
		s.setActive(session)

		if err := session.Serve(); err != nil {
			log.Warn("Session ended with an error", zap.Error(err))
		} else {
			log.Info("Session ended")
		}

		s.setActive(nil)
	}
}

func (s *Simulator) setActive(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = session
}

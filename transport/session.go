package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/imubridge/protocol"
)

const (
	// WriteTimeout bounds how long a frame may wait on a client that stopped reading
	WriteTimeout = 5 * time.Second
)

// State of a simulated sensor session.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the simulator side of one client connection.
//
// A single loop owns the socket writes and waits on whichever comes first:
// the streaming ticker, a command from the reader goroutine, or
// cancellation. Neither the ticker nor the socket can starve the other.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn   net.Conn
	source FrameSource
	trace  bool

	mu       sync.Mutex
	state    State
	interval time.Duration

	log *zap.Logger
}

func NewSession(
	parentCtx context.Context,
	conn net.Conn,
	source FrameSource,
	trace bool,
	log *zap.Logger,
) *Session {
	ctx, cancel := context.WithCancel(parentCtx)

	return &Session{
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		source: source,
		trace:  trace,
		state:  StateIdle,
		log:    log,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Interval returns the current streaming interval, zero while idle.
func (s *Session) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.interval
}

// Close ends the session. Serve returns shortly after.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// Serve runs the session until the client sends Stop, disconnects, an I/O
// error occurs or the session is closed. The connection is always closed on
// return. A nil error means the session ended normally.
func (s *Session) Serve() (err error) {
	messages := make(chan []byte)
	readErr := make(chan error, 1)

	var readWaiter sync.WaitGroup
	readWaiter.Add(1)

	go func() {
		defer readWaiter.Done()
		s.readLoop(messages, readErr)
	}()

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)

	defer func() {
		if ticker != nil {
			ticker.Stop()
		}

		s.setState(StateClosed, 0)
		s.cancel()

		if cerr := s.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}

		readWaiter.Wait()
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("Session cancelled")
			return nil

		case rerr := <-readErr:
			if errors.Is(rerr, io.EOF) {
				s.log.Info("Client closed the connection")
				return nil
			}

			return fmt.Errorf("Failed to read command: %w", rerr)

		case msg := <-messages:
			cmd, derr := protocol.DecodeCommand(msg)
			if derr != nil {
				s.log.Warn("Ignoring malformed command", zap.ByteString("command", msg), zap.Error(derr))
				continue
			}

			switch c := cmd.(type) {
			case protocol.StartCommand:
				interval := time.Duration(c.Interval) * time.Millisecond

				if ticker == nil {
					ticker = time.NewTicker(interval)
					tick = ticker.C
				} else {
					ticker.Reset(interval)

					// Drop a tick of the old cadence that is already pending
					select {
					case <-ticker.C:
					default:
					}
				}

				s.setState(StateStreaming, interval)
				s.log.Info("Start command received", zap.Uint16("intervalMs", c.Interval))

			case protocol.StopCommand:
				s.log.Info("Stop command received")
				return nil
			}

		case <-tick:
			frame := s.source.Next()

			if err := s.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
				return fmt.Errorf("Failed to set write deadline: %w", err)
			}

			if err := protocol.WriteStatus(s.conn, frame); err != nil {
				return fmt.Errorf("Failed to send status frame: %w", err)
			}

			if s.trace {
				s.log.Debug("Sent status frame", zap.Any("frame", frame))
			}
		}
	}
}

func (s *Session) readLoop(messages chan<- []byte, readErr chan<- error) {
	r := protocol.NewReader(s.conn)

	for {
		msg, err := r.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrMessageTooLong) {
				s.log.Warn("Ignoring overlong command", zap.Error(err))
				continue
			}

			readErr <- err
			return
		}

		if s.trace {
			s.log.Debug("Received", zap.ByteString("message", msg))
		}

		select {
		case messages <- msg:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) setState(state State, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	s.interval = interval
}

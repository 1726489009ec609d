package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luma/imubridge/protocol"
	"github.com/luma/imubridge/publish"
)

const (
	DefaultPollTimeout = 100 * time.Millisecond
	DefaultDialTimeout = 5 * time.Second

	writeTimeout = 5 * time.Second
)

var (
	ErrNotConnected     = errors.New("No connection to sensor")
	ErrConnectionClosed = errors.New("Connection to sensor closed")
)

// ConnectError is returned when the sensor endpoint cannot be reached. The
// connection is left unset, retrying is up to the caller.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("Failed to connect to sensor at %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

type Options struct {
	// PollTimeout bounds how long a single receive waits for a frame
	PollTimeout time.Duration

	DialTimeout time.Duration

	// Publisher receives every decoded reading while forwarding is enabled
	Publisher publish.Publisher

	Log *zap.Logger
}

// Conn drives a remote sensor over a single TCP connection.
//
// Two flags are tracked independently: forwarding (whether decoded readings
// reach the publisher) and streaming (whether the sensor was last told to
// start). Muting the local side never touches the socket.
//
// PollOnce and Run must only be used from one goroutine at a time, the
// command methods are safe for concurrent use.
type Conn struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *protocol.Reader

	writeMu sync.Mutex

	forwarding atomic.Bool
	streaming  atomic.Bool
	interval   atomic.Uint32

	pollTimeout time.Duration
	dialTimeout time.Duration

	publisher publish.Publisher

	log *zap.Logger
}

func New(options Options) *Conn {
	c := &Conn{
		pollTimeout: options.PollTimeout,
		dialTimeout: options.DialTimeout,
		publisher:   options.Publisher,
		log:         options.Log,
	}

	if c.pollTimeout <= 0 {
		c.pollTimeout = DefaultPollTimeout
	}

	if c.dialTimeout <= 0 {
		c.dialTimeout = DefaultDialTimeout
	}

	if c.publisher == nil {
		c.publisher = publish.Discard
	}

	if c.log == nil {
		c.log = zap.NewNop()
	}

	c.forwarding.Store(true)

	return c
}

// Connect opens the TCP connection to the sensor. Any existing connection
// is closed first.
func (c *Conn) Connect(ctx context.Context, addr string) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectError{Addr: addr, Err: err}
	}

	c.mu.Lock()
	previous := c.conn
	c.conn = conn
	c.reader = protocol.NewReader(conn)
	c.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	c.streaming.Store(false)
	c.log.Info("Connected to sensor", zap.String("addr", addr))

	return nil
}

// Disconnect closes the connection. It is a no-op when not connected.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.reader = nil
	c.mu.Unlock()

	c.streaming.Store(false)

	if conn == nil {
		return nil
	}

	c.log.Info("Disconnecting from sensor")
	return conn.Close()
}

func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

// Forwarding reports whether readings are currently passed to the publisher.
func (c *Conn) Forwarding() bool {
	return c.forwarding.Load()
}

// Streaming reports whether the sensor was last told to start.
func (c *Conn) Streaming() bool {
	return c.streaming.Load()
}

// Interval returns the last interval successfully sent with SendStart.
func (c *Conn) Interval() uint16 {
	return uint16(c.interval.Load())
}

// SendStart asks the sensor to stream every interval milliseconds. The
// protocol has no acknowledgement, success only means the bytes were written.
func (c *Conn) SendStart(interval uint16) error {
	if err := c.send(protocol.StartCommand{Interval: interval}); err != nil {
		return err
	}

	c.streaming.Store(true)
	c.interval.Store(uint32(interval))

	c.log.Info("Sent start command", zap.Uint16("intervalMs", interval))
	return nil
}

func (c *Conn) SendStop() error {
	if err := c.send(protocol.StopCommand{}); err != nil {
		return err
	}

	c.streaming.Store(false)

	c.log.Info("Sent stop command")
	return nil
}

func (c *Conn) send(cmd protocol.Command) error {
	b, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn, _ := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("Failed to set write deadline: %w", err)
	}

	if _, err := conn.Write(b); err != nil {
		c.release(conn)
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}

	return nil
}

// PollOnce waits at most the poll timeout for one message.
//
// It returns a reading for a status frame, (nil, nil) when nothing arrived
// in time, an error wrapping protocol.ErrMalformedFrame for anything that is
// not a valid status frame (the session is unaffected), and an error
// wrapping ErrConnectionClosed when the connection is gone.
func (c *Conn) PollOnce(ctx context.Context) (*protocol.Reading, error) {
	conn, reader := c.current()
	if conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(c.pollTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := conn.SetReadDeadline(deadline); err != nil {
		c.release(conn)
		return nil, fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}

	msg, err := reader.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil
		}

		if errors.Is(err, protocol.ErrMessageTooLong) {
			return nil, fmt.Errorf("%w: %w", protocol.ErrMalformedFrame, err)
		}

		c.release(conn)
		return nil, fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}

	frame, err := protocol.DecodeStatus(msg)
	if err != nil {
		return nil, err
	}

	reading := frame.Reading()
	return &reading, nil
}

// Run receives readings until the context is cancelled or the connection
// is lost, forwarding them to the publisher while forwarding is enabled.
// Malformed messages are logged and skipped.
func (c *Conn) Run(ctx context.Context) error {
	log := c.log.Named("readLoop")

	for {
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, exiting...")
			return nil

		default:
			reading, err := c.PollOnce(ctx)

			switch {
			case errors.Is(err, ErrConnectionClosed), errors.Is(err, ErrNotConnected):
				log.Warn("Sensor connection lost", zap.Error(err))
				return err

			case err != nil:
				log.Warn("Discarding malformed message", zap.Error(err))
				continue

			case reading == nil:
				continue
			}

			if !c.forwarding.Load() {
				continue
			}

			log.Debug("Decoded status frame", zap.Any("reading", reading))

			if err := c.publisher.Publish(ctx, *reading); err != nil {
				log.Warn("Failed to publish reading", zap.Error(err))
			}
		}
	}
}

func (c *Conn) current() (net.Conn, *protocol.Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn, c.reader
}

// release drops conn after an I/O failure, unless it was already replaced.
func (c *Conn) release(conn net.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.reader = nil
		c.streaming.Store(false)
	}
	c.mu.Unlock()

	conn.Close()
}

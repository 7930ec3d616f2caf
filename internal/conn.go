package internal

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TransportError reports a socket level read or write failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConnOption configures a Conn.
type ConnOption func(c *Conn)

// WithWriteTimeout bounds every Send with a write deadline. Zero disables it.
func WithWriteTimeout(timeout time.Duration) ConnOption {
	return func(c *Conn) {
		c.writeTimeout = timeout
	}
}

// WithMaxMessageSize limits the payload size accepted by Receive.
func WithMaxMessageSize(size int) ConnOption {
	return func(c *Conn) {
		c.maxMessageSize = size
	}
}

// Conn owns one peer socket and exchanges framed messages over it.
type Conn struct {
	id     string
	conn   net.Conn
	reader *bufio.Reader

	writeTimeout   time.Duration
	maxMessageSize int

	writeMu sync.Mutex

	nameMu sync.RWMutex
	name   string

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps conn. The returned Conn takes ownership of the socket.
func NewConn(conn net.Conn, options ...ConnOption) *Conn {
	c := &Conn{
		id:             uuid.NewString(),
		conn:           conn,
		reader:         bufio.NewReader(conn),
		maxMessageSize: DefaultMaxMessageSize,
	}
	for _, option := range options {
		if option != nil {
			option(c)
		}
	}
	return c
}

// ID returns a random identifier used to tell connections apart in logs.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// DisplayName returns the name the peer reported for itself.
func (c *Conn) DisplayName() string {
	c.nameMu.RLock()
	defer c.nameMu.RUnlock()
	return c.name
}

// SetDisplayName replaces the display name. Any string is accepted.
func (c *Conn) SetDisplayName(name string) {
	c.nameMu.Lock()
	c.name = name
	c.nameMu.Unlock()
}

// State returns the relay state of the connection.
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Send encodes msg and writes it as one frame. Safe for concurrent use.
func (c *Conn) Send(msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
	}
	if err := WriteFrame(c.conn, payload); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Receive blocks until one complete message arrives.
// It returns io.EOF when the peer closed the connection between messages.
func (c *Conn) Receive() (Message, error) {
	payload, err := ReadFrame(c.reader, c.maxMessageSize)
	if err != nil {
		switch {
		case err == io.EOF:
			return Message{}, io.EOF
		case errors.Is(err, ErrMalformedMessage):
			return Message{}, err
		default:
			return Message{}, &TransportError{Op: "read", Err: err}
		}
	}
	return Decode(payload)
}

// Close releases the socket. Calling Close more than once is a no-op.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

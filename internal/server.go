package internal

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

// ErrServerClosed is returned by Serve and Start after Shutdown.
var ErrServerClosed = errors.New("relay server closed")

// ServerOption configures a Server.
type ServerOption func(s *Server)

// WithLogger sets the logger used for operator and diagnostic output.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithMetrics sets the collectors updated by the server.
func WithMetrics(metrics *Metrics) ServerOption {
	return func(s *Server) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// Server accepts chat clients and relays every message to the other members.
type Server struct {
	cfg      Config
	log      *logrus.Logger
	metrics  *Metrics
	registry *Registry

	showActions atomic.Bool

	mu         sync.Mutex
	listener   net.Listener
	acceptDone chan struct{}
	conns      map[*Conn]struct{}
	closing    bool

	loops conc.WaitGroup
}

func NewServer(cfg Config, options ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		log:      logrus.StandardLogger(),
		registry: NewRegistry(),
		conns:    make(map[*Conn]struct{}),
	}
	for _, option := range options {
		if option != nil {
			option(s)
		}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.showActions.Store(cfg.ShowActions)
	return s
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.Wrap(err, "failed to start server")
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener and starts a receive loop for each.
// It returns ErrServerClosed after Shutdown; any other accept error is returned as is
// and should be treated as fatal.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("relay server is already serving")
	}
	s.listener = listener
	s.acceptDone = make(chan struct{})
	s.mu.Unlock()
	defer close(s.acceptDone)

	s.log.WithField("address", listener.Addr().String()).Info("Listening for clients")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosing() {
				return ErrServerClosed
			}
			listener.Close()
			return errors.Wrap(err, "accept")
		}

		c := NewConn(conn,
			WithWriteTimeout(s.cfg.WriteTimeout),
			WithMaxMessageSize(s.cfg.MaxMessageSize),
		)
		if !s.track(c) {
			c.Close()
			return ErrServerClosed
		}
		s.metrics.accepted.Inc()
		s.loops.Go(func() {
			s.handleConnection(c)
		})
	}
}

// Shutdown stops accepting, closes every client connection and waits for
// their receive loops to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	listener, acceptDone := s.listener, s.acceptDone
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if listener != nil {
		if closeErr := listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
		<-acceptDone
	}
	for _, c := range conns {
		if closeErr := c.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
	}

	drained := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.log.Info("Server stopped")
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Names returns the display names of the registered clients.
func (s *Server) Names() []string {
	return s.registry.Names()
}

// Broadcast sends text from the server to every registered client.
// Invalid UTF-8 in text is replaced with U+FFFD.
func (s *Server) Broadcast(text string) {
	text = strings.ToValidUTF8(text, "\uFFFD")
	s.broadcast(Message{Type: MessageTypeBroadcast, Content: text}, nil)
}

// ShowActions reports whether join and leave events are logged.
func (s *Server) ShowActions() bool {
	return s.showActions.Load()
}

func (s *Server) SetShowActions(show bool) {
	s.showActions.Store(show)
}

// ToggleShowActions flips join and leave logging and returns the new setting.
func (s *Server) ToggleShowActions() bool {
	for {
		old := s.showActions.Load()
		if s.showActions.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) handleConnection(c *Conn) {
	defer s.untrack(c)

	entry := s.log.WithFields(logrus.Fields{
		"conn":   c.ID(),
		"remote": c.RemoteAddr().String(),
	})
	entry.Debug("Connection accepted")

	c.setState(StateAwaitingJoin)
	first, err := c.Receive()
	if err != nil {
		entry.WithError(err).Debug("Connection ended before joining")
		if err := c.Send(Message{Type: MessageTypeFailure}); err != nil {
			entry.WithError(err).Debug("Failed to send failure notice")
		}
		s.terminate(c, false, terminationReason(err))
		return
	}
	s.metrics.received.WithLabelValues(first.Type.String()).Inc()

	c.SetDisplayName(first.Author)
	s.broadcast(first, c)
	if s.registry.Add(c) {
		s.metrics.members.Inc()
	}
	c.setState(StateActive)
	s.logAction(c, "%q has joined")

	reason := "quit"
	for {
		msg, err := c.Receive()
		if err != nil {
			entry.WithError(err).Debug("Receive loop ended")
			reason = terminationReason(err)
			break
		}
		s.metrics.received.WithLabelValues(msg.Type.String()).Inc()
		entry.Debugf("Relaying %s", formatMessage(msg))

		s.broadcast(msg, c)

		if msg.Type == MessageTypeRename {
			c.SetDisplayName(msg.Content)
		} else if msg.Type == MessageTypeQuit {
			break
		}
	}

	s.terminate(c, true, reason)
}

// terminate removes c from the registry and releases its socket.
func (s *Server) terminate(c *Conn, joined bool, reason string) {
	if s.registry.Remove(c) {
		s.metrics.members.Dec()
	}
	c.Close()
	c.setState(StateTerminated)
	s.metrics.terminated.WithLabelValues(reason).Inc()

	if joined {
		s.logAction(c, "%q has left")
	}
}

// broadcast delivers msg to every member except exclude. A member whose
// write fails is closed, which ends its own receive loop.
func (s *Server) broadcast(msg Message, exclude *Conn) {
	s.registry.ForEachExcept(exclude, func(peer *Conn) {
		if err := peer.Send(msg); err != nil {
			s.log.WithFields(logrus.Fields{
				"conn": peer.ID(),
				"name": peer.DisplayName(),
			}).WithError(err).Warn("Dropping client after failed write")
			s.metrics.failed.Inc()
			peer.Close()
			return
		}
		s.metrics.delivered.Inc()
	})
}

func (s *Server) logAction(c *Conn, format string) {
	if !s.showActions.Load() {
		return
	}
	s.log.WithField("conn", c.ID()).Infof(format, c.DisplayName())
}

func terminationReason(err error) string {
	switch {
	case err == io.EOF:
		return "eof"
	case errors.Is(err, ErrMalformedMessage):
		return "malformed"
	default:
		return "transport"
	}
}

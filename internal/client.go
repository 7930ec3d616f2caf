package internal

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// Dial connects to a relay server at address. The returned Conn speaks the
// same framed protocol as the server side: Send transmits a message and
// Receive blocks for the next one relayed by the server.
func Dial(ctx context.Context, address string, options ...ConnOption) (*Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to server")
	}
	return NewConn(conn, options...), nil
}

// Join dials address and announces name with a join message.
func Join(ctx context.Context, address, name string, options ...ConnOption) (*Conn, error) {
	c, err := Dial(ctx, address, options...)
	if err != nil {
		return nil, err
	}
	c.SetDisplayName(name)
	if err := c.Send(Message{Type: MessageTypeJoin, Author: name}); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

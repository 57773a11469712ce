// Package client pushes single commands to a running variable server.
//
// Each Conn carries one command. Writes are fire-and-forget: the server
// sends no reply, so a nil error only means the bytes were handed to the
// kernel, not that the server applied them. Remote reads and removes are
// not part of the protocol.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ASHISH26940/sharedvars/internal/protocol"
	"github.com/ASHISH26940/sharedvars/internal/variant"
)

var (
	ErrDial = errors.New("connect to variable server failed")
	ErrUsed = errors.New("connection already carried a command")
)

// Conn is a short-lived outbound connection.
type Conn struct {
	conn net.Conn
	used bool
}

// Dial makes one connection attempt to addr. There is no retry.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDial, err)
	}
	return &Conn{conn: conn}, nil
}

// Add sends an add command for name.
func (c *Conn) Add(name string, v variant.Variant) error {
	return c.send(protocol.Add(name, v))
}

// Quit sends the quit handshake.
func (c *Conn) Quit() error {
	return c.send(protocol.Quit())
}

func (c *Conn) send(cmd protocol.Command) error {
	if c.used {
		return ErrUsed
	}
	msg, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	c.used = true
	if _, err := c.conn.Write(msg); err != nil {
		return fmt.Errorf("write %s command: %w", cmd.Op, err)
	}
	return nil
}

// Close ends the message. The server decodes the command once it sees EOF.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Push dials addr, sends one add command and closes.
func Push(ctx context.Context, addr, name string, v variant.Variant) error {
	if err := protocol.ValidateName(name); err != nil {
		return err
	}
	c, err := Dial(ctx, addr)
	if err != nil {
		return err
	}
	if err := c.Add(name, v); err != nil {
		c.Close()
		return err
	}
	return c.Close()
}

// SendQuit dials addr, sends the quit handshake and closes.
func SendQuit(ctx context.Context, addr string) error {
	c, err := Dial(ctx, addr)
	if err != nil {
		return err
	}
	if err := c.Quit(); err != nil {
		c.Close()
		return err
	}
	return c.Close()
}

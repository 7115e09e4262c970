package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Conn is one stream connection to a local endpoint. Writes are serialized;
// a single reader at a time is expected.
type Conn struct {
	conn   net.Conn
	mu     sync.Mutex
	closed bool
	reader *bufio.Reader
}

// Dial connects to the endpoint at path. There is no dial timeout; ctx only cancels.
func Dial(ctx context.Context, path string) (*Conn, error) {
	c, err := dial(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn:   c,
		reader: bufio.NewReader(c),
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Conn) SendRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_, err := c.conn.Write(b)
	return err
}

func (c *Conn) SendOp(op OpCode, payload any) error {
	data, err := EncodeFrameOp(op, payload)
	if err != nil {
		return err
	}
	if err := c.SendRaw(data); err != nil {
		return fmt.Errorf("write %s frame: %w", op, err)
	}
	return nil
}

func (c *Conn) Receive() (Frame, error) {
	return ReadFrame(c.reader)
}

// SetReadDeadline bounds the next Receive; the zero time clears it.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

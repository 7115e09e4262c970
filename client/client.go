package client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/codec"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
	"github.com/ilNikk/Apple-Music-Discord-Presence/transport/ipc"
)

// Link is one connection to the chat client's IPC endpoint.
type Link interface {
	Connect(ctx context.Context, candidates iter.Seq[string]) error
	SendActivity(details, state, name, largeImage, largeText string) error
	ClearActivity() error
	Disconnect()
	State() State
}

// DefaultHandshakeTimeout bounds the wait for READY after a successful dial.
const DefaultHandshakeTimeout = 10 * time.Second

type Option func(*Client)

func WithLogger(l *logx.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHandshakeTimeout sets the READY wait; zero waits forever.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.handshakeTimeout = d }
}

// WithClock replaces time.Now for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithPID(pid int) Option {
	return func(c *Client) { c.pid = pid }
}

// Client implements Link over one socket. A Client never outlives its socket:
// after Disconnect or a lost link it can be connected again, but the
// supervisor creates a fresh one per attempt.
type Client struct {
	AppID string

	log              *logx.Logger
	handshakeTimeout time.Duration
	now              func() time.Time
	pid              int

	// ioMu serializes request/reply exchanges; mu guards transport and state.
	ioMu      sync.Mutex
	mu        sync.Mutex
	transport *ipc.Conn
	state     State
}

func NewClient(appID string, opts ...Option) *Client {
	c := &Client{
		AppID:            appID,
		log:              logx.NewLogger("ipc"),
		handshakeTimeout: DefaultHandshakeTimeout,
		now:              time.Now,
		pid:              os.Getpid(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect tries each candidate in order and stops at the first one that
// completes the handshake. Dials have no timeout of their own.
func (c *Client) Connect(ctx context.Context, candidates iter.Seq[string]) error {
	c.ioMu.Lock()
	defer c.ioMu.Unlock()

	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = Connecting
	c.mu.Unlock()

	for path := range candidates {
		if err := ctx.Err(); err != nil {
			c.setState(Disconnected)
			return err
		}

		conn, err := ipc.Dial(ctx, path)
		if err != nil {
			c.log.Debug("dial %s: %v", path, err)
			continue
		}

		c.mu.Lock()
		c.transport = conn
		c.state = AwaitingReady
		c.mu.Unlock()

		if err := c.handshake(conn); err != nil {
			c.log.Debug("handshake on %s failed: %v", path, err)
			c.drop(conn, Connecting)
			continue
		}

		c.mu.Lock()
		if c.transport != conn {
			// Disconnect raced the handshake.
			c.mu.Unlock()
			return ErrLinkLost
		}
		c.state = Ready
		c.mu.Unlock()
		c.log.Info("connected to %s", path)
		return nil
	}

	c.setState(Disconnected)
	return ErrNoEndpointFound
}

func (c *Client) handshake(conn *ipc.Conn) error {
	if err := conn.SendOp(ipc.OpHandshake, handshake{V: 1, ClientID: c.AppID}); err != nil {
		return fmt.Errorf("handshake send: %w", err)
	}
	if c.handshakeTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout)); err != nil {
			return fmt.Errorf("handshake deadline: %w", err)
		}
		defer conn.SetReadDeadline(time.Time{})
	}
	f, err := conn.Receive()
	if err != nil {
		return fmt.Errorf("handshake read: %w", err)
	}
	resp := parseResponse(f.Payload)
	if !resp.isReady() {
		return fmt.Errorf("%w: cmd=%q evt=%q", ErrHandshakeRejected, resp.Cmd, resp.Evt)
	}
	return nil
}

// drop closes conn and, if it is still ours, moves to next.
func (c *Client) drop(conn *ipc.Conn, next State) {
	c.mu.Lock()
	if c.transport == conn {
		c.transport = nil
		c.state = next
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// SendActivity publishes a "listening" activity whose timer starts now.
// largeImage and largeText are optional; empty means absent.
func (c *Client) SendActivity(details, state, name, largeImage, largeText string) error {
	return c.setActivity(NewListeningActivity(details, state, name, largeImage, largeText, c.now()))
}

// ClearActivity removes the published activity.
func (c *Client) ClearActivity() error {
	return c.setActivity(nil)
}

func (c *Client) setActivity(act *Activity) error {
	c.ioMu.Lock()
	defer c.ioMu.Unlock()

	c.mu.Lock()
	conn, state := c.transport, c.state
	c.mu.Unlock()
	if state != Ready || conn == nil {
		return ErrNotReady
	}

	cmd := command{
		Cmd:   cmdSetActivity,
		Args:  activityArgs{PID: c.pid, Activity: act},
		Nonce: uuid.NewString(),
	}
	if err := conn.SendOp(ipc.OpFrame, cmd); err != nil {
		if errors.Is(err, ipc.ErrInvalidPayload) {
			return err
		}
		c.drop(conn, Disconnected)
		return fmt.Errorf("%w: %w", ErrLinkLost, err)
	}

	resp, err := c.readReply(conn)
	if err != nil {
		c.drop(conn, Disconnected)
		return fmt.Errorf("%w: %w", ErrLinkLost, err)
	}
	return resp.err()
}

// readReply returns the next reply, answering pings on the way. A CLOSE
// from the peer ends the link.
func (c *Client) readReply(conn *ipc.Conn) (Response, error) {
	for {
		f, err := conn.Receive()
		if err != nil {
			return Response{}, err
		}
		switch f.Opcode {
		case ipc.OpPing:
			if err := conn.SendOp(ipc.OpPong, f.Payload); err != nil {
				return Response{}, err
			}
			continue
		case ipc.OpClose:
			return Response{}, fmt.Errorf("peer closed: code %d: %s",
				codec.Int(f.Payload, "code"), codec.String(f.Payload, "message"))
		}
		return parseResponse(f.Payload), nil
	}
}

// Disconnect sends a best-effort CLOSE and closes the socket. Safe to call
// on an already disconnected client.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.transport
	c.transport = nil
	c.state = Disconnected
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.SendOp(ipc.OpClose, map[string]any{}); err != nil {
		c.log.Debug("close frame: %v", err)
	}
	_ = conn.Close()
	c.log.Debug("connection closed")
}

//go:build !windows

package client

import (
	"context"
	"errors"
	"io"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/ipctest"
	"github.com/ilNikk/Apple-Music-Discord-Presence/transport/ipc"
)

var fixedNow = time.Unix(1700000000, 0)

func newTestClient(opts ...Option) *Client {
	opts = append([]Option{
		WithHandshakeTimeout(500 * time.Millisecond),
		WithClock(func() time.Time { return fixedNow }),
		WithPID(4242),
	}, opts...)
	return NewClient("1234567890", opts...)
}

func connected(t *testing.T, opts ...ipctest.Option) (*Client, *ipctest.Server) {
	t.Helper()
	dir := ipctest.TempDir(t)
	srv := ipctest.Listen(t, ipctest.SocketPath(dir, 0), opts...)

	c := newTestClient()
	require.NoError(t, c.Connect(context.Background(), slices.Values([]string{srv.Path})))
	t.Cleanup(c.Disconnect)
	return c, srv
}

func TestConnectHandshake(t *testing.T) {
	c, srv := connected(t)

	assert.Equal(t, Ready, c.State())
	frames := srv.Frames()
	require.NotEmpty(t, frames)
	assert.Equal(t, ipc.OpHandshake, frames[0].Opcode)
	assert.EqualValues(t, 1, frames[0].Payload["v"])
	assert.Equal(t, "1234567890", frames[0].Payload["client_id"])
}

func TestConnectTwice(t *testing.T) {
	c, srv := connected(t)

	err := c.Connect(context.Background(), slices.Values([]string{srv.Path}))
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, Ready, c.State())
}

func TestConnectSkipsRejectingEndpoint(t *testing.T) {
	dir := ipctest.TempDir(t)
	bad := ipctest.Listen(t, ipctest.SocketPath(dir, 0),
		ipctest.WithHandshakeReply(map[string]any{"cmd": "DISPATCH", "evt": "ERROR"}))
	good := ipctest.Listen(t, ipctest.SocketPath(dir, 1))

	c := newTestClient()
	defer c.Disconnect()
	require.NoError(t, c.Connect(context.Background(), slices.Values([]string{bad.Path, good.Path})))

	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 1, bad.Count(ipc.OpHandshake))
	assert.Equal(t, 1, good.Count(ipc.OpHandshake))
}

func TestConnectRejectedHandshake(t *testing.T) {
	dir := ipctest.TempDir(t)
	srv := ipctest.Listen(t, ipctest.SocketPath(dir, 0),
		ipctest.WithHandshakeReply(map[string]any{"cmd": "AUTHORIZE", "evt": nil}))

	c := newTestClient()
	err := c.Connect(context.Background(), slices.Values([]string{srv.Path}))

	assert.ErrorIs(t, err, ErrNoEndpointFound)
	assert.Equal(t, Disconnected, c.State())
}

func TestConnectNoEndpoint(t *testing.T) {
	var candidates []string
	for range 4 {
		dir := ipctest.TempDir(t)
		for i := range ipc.SocketSlots {
			candidates = append(candidates, ipctest.SocketPath(dir, i))
		}
	}
	require.Len(t, candidates, 40)

	c := newTestClient()
	err := c.Connect(context.Background(), slices.Values(candidates))

	assert.ErrorIs(t, err, ErrNoEndpointFound)
	assert.Equal(t, Disconnected, c.State())
}

func TestConnectHandshakeTimeout(t *testing.T) {
	dir := ipctest.TempDir(t)
	path := ipctest.SocketPath(dir, 0)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	c := newTestClient(WithHandshakeTimeout(50 * time.Millisecond))
	err = c.Connect(context.Background(), slices.Values([]string{path}))
	assert.ErrorIs(t, err, ErrNoEndpointFound)
	assert.Equal(t, Disconnected, c.State())

	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(time.Second):
		t.Fatal("endpoint never saw the dial")
	}
}

func TestConnectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient()
	err := c.Connect(ctx, slices.Values([]string{"/nonexistent/discord-ipc-0"}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Disconnected, c.State())
}

func TestSendActivityPayload(t *testing.T) {
	c, srv := connected(t)

	require.NoError(t, c.SendActivity("Song", "by Artist", "Apple Music", "https://img/512x512bb.jpg", "Album"))

	cmds := srv.Commands()
	require.Len(t, cmds, 1)
	cmd := cmds[0]
	assert.Equal(t, "SET_ACTIVITY", cmd["cmd"])
	_, err := uuid.Parse(cmd["nonce"].(string))
	assert.NoError(t, err)

	args := cmd["args"].(map[string]any)
	assert.EqualValues(t, 4242, args["pid"])

	act := args["activity"].(map[string]any)
	assert.EqualValues(t, 2, act["type"])
	assert.Equal(t, "Apple Music", act["name"])
	assert.Equal(t, "Song", act["details"])
	assert.Equal(t, "by Artist", act["state"])
	assert.EqualValues(t, fixedNow.Unix(), act["timestamps"].(map[string]any)["start"])
	assert.Equal(t, map[string]any{
		"large_image": "https://img/512x512bb.jpg",
		"large_text":  "Album",
	}, act["assets"])
}

func TestSendActivityWithoutArtwork(t *testing.T) {
	c, srv := connected(t)

	require.NoError(t, c.SendActivity("Song", "by Artist", "Apple Music", "", ""))

	cmds := srv.Commands()
	require.Len(t, cmds, 1)
	act := cmds[0]["args"].(map[string]any)["activity"].(map[string]any)
	assert.NotContains(t, act, "assets")
}

func TestSendActivityNonceIsFresh(t *testing.T) {
	c, srv := connected(t)

	require.NoError(t, c.SendActivity("A", "by X", "Apple Music", "", ""))
	require.NoError(t, c.SendActivity("B", "by Y", "Apple Music", "", ""))

	cmds := srv.Commands()
	require.Len(t, cmds, 2)
	assert.NotEqual(t, cmds[0]["nonce"], cmds[1]["nonce"])
}

func TestClearActivity(t *testing.T) {
	c, srv := connected(t)

	require.NoError(t, c.ClearActivity())

	cmds := srv.Commands()
	require.Len(t, cmds, 1)
	args := cmds[0]["args"].(map[string]any)
	assert.Contains(t, args, "activity")
	assert.Nil(t, args["activity"])
}

func TestSendActivityRejected(t *testing.T) {
	c, _ := connected(t, ipctest.WithReply(ipctest.ErrorReply))

	err := c.SendActivity("Song", "by Artist", "Apple Music", "", "")
	require.ErrorIs(t, err, ErrRejected)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, 4000, respErr.Code)
	assert.Contains(t, respErr.Message, "activity")
	assert.Equal(t, Ready, c.State())
}

func TestSendActivityLinkLost(t *testing.T) {
	c, _ := connected(t, ipctest.WithReply(func(map[string]any) map[string]any { return nil }))

	err := c.SendActivity("Song", "by Artist", "Apple Music", "", "")
	assert.ErrorIs(t, err, ErrLinkLost)
	assert.Equal(t, Disconnected, c.State())

	assert.ErrorIs(t, c.SendActivity("Song", "by Artist", "Apple Music", "", ""), ErrNotReady)
}

func TestSendActivityAfterPeerDropped(t *testing.T) {
	c, srv := connected(t)
	srv.DropConnections()

	// The first write after the peer goes away may still succeed; the
	// missing reply is what surfaces the loss.
	err := c.SendActivity("Song", "by Artist", "Apple Music", "", "")
	assert.ErrorIs(t, err, ErrLinkLost)
	assert.Equal(t, Disconnected, c.State())
}

func TestSendActivityNotReady(t *testing.T) {
	c := newTestClient()
	assert.ErrorIs(t, c.SendActivity("Song", "by Artist", "Apple Music", "", ""), ErrNotReady)
	assert.ErrorIs(t, c.ClearActivity(), ErrNotReady)
}

func TestDisconnect(t *testing.T) {
	c, srv := connected(t)

	c.Disconnect()
	c.Disconnect()

	assert.Equal(t, Disconnected, c.State())
	require.Eventually(t, func() bool { return srv.Count(ipc.OpClose) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.ClearActivity(), ErrNotReady)
}

func TestDisconnectThenReconnect(t *testing.T) {
	c, srv := connected(t)

	c.Disconnect()
	require.NoError(t, c.Connect(context.Background(), slices.Values([]string{srv.Path})))
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 2, srv.Count(ipc.OpHandshake))
}

func TestPingAnsweredWhileAwaitingReply(t *testing.T) {
	dir := ipctest.TempDir(t)
	path := ipctest.SocketPath(dir, 0)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	pong := make(chan ipc.Frame, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := ipc.ReadFrame(conn); err != nil {
			return
		}
		_ = ipc.WriteFrame(conn, ipc.OpFrame, ipctest.ReadyReply())

		cmd, err := ipc.ReadFrame(conn)
		if err != nil {
			return
		}
		_ = ipc.WriteFrame(conn, ipc.OpPing, map[string]any{"n": 7})
		f, err := ipc.ReadFrame(conn)
		if err != nil {
			return
		}
		pong <- f
		_ = ipc.WriteFrame(conn, ipc.OpFrame, ipctest.EchoReply(cmd.Payload))
		_, _ = ipc.ReadFrame(conn)
	}()

	c := newTestClient()
	defer c.Disconnect()
	require.NoError(t, c.Connect(context.Background(), slices.Values([]string{path})))
	require.NoError(t, c.SendActivity("Song", "by Artist", "Apple Music", "", ""))

	select {
	case f := <-pong:
		assert.Equal(t, ipc.OpPong, f.Opcode)
		assert.EqualValues(t, 7, f.Payload["n"])
	case <-time.After(time.Second):
		t.Fatal("no pong")
	}
}

func TestPeerCloseEndsLink(t *testing.T) {
	dir := ipctest.TempDir(t)
	path := ipctest.SocketPath(dir, 0)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := ipc.ReadFrame(conn); err != nil {
			return
		}
		_ = ipc.WriteFrame(conn, ipc.OpFrame, ipctest.ReadyReply())
		if _, err := ipc.ReadFrame(conn); err != nil {
			return
		}
		_ = ipc.WriteFrame(conn, ipc.OpClose, map[string]any{"code": 1000, "message": "bye"})
	}()

	c := newTestClient()
	require.NoError(t, c.Connect(context.Background(), slices.Values([]string{path})))

	err = c.ClearActivity()
	assert.ErrorIs(t, err, ErrLinkLost)
	assert.Contains(t, err.Error(), "bye")
	assert.Equal(t, Disconnected, c.State())
}

// deadlineFailConn cannot bound its reads.
type deadlineFailConn struct {
	net.Conn
}

func (deadlineFailConn) SetReadDeadline(time.Time) error {
	return errors.New("deadlines not supported")
}

func TestHandshakeFailsWithoutReadDeadline(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()
	go func() { _, _ = io.Copy(io.Discard, remote) }()

	c := newTestClient(WithHandshakeTimeout(50 * time.Millisecond))
	err := c.handshake(ipc.NewConn(deadlineFailConn{local}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake deadline")
}

// Package ipctest runs an in-process stand-in for the chat client's IPC
// endpoint on a unix socket.
package ipctest

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/codec"
	"github.com/ilNikk/Apple-Music-Discord-Presence/transport/ipc"
)

// ReplyFunc answers one OpFrame command. Returning nil closes the connection
// without a reply.
type ReplyFunc func(cmd map[string]any) map[string]any

type Option func(*Server)

// WithHandshakeReply replaces the READY dispatch sent after a handshake.
func WithHandshakeReply(reply map[string]any) Option {
	return func(s *Server) { s.handshakeReply = reply }
}

func WithReply(fn ReplyFunc) Option {
	return func(s *Server) { s.reply = fn }
}

type Server struct {
	Path string

	ln             net.Listener
	handshakeReply map[string]any
	reply          ReplyFunc

	mu     sync.Mutex
	frames []ipc.Frame
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// ReadyReply is the dispatch a healthy endpoint answers a handshake with.
func ReadyReply() map[string]any {
	return map[string]any{
		"cmd":  "DISPATCH",
		"evt":  "READY",
		"data": map[string]any{"v": 1, "user": map[string]any{"username": "tester"}},
	}
}

// EchoReply acknowledges a SET_ACTIVITY the way the real endpoint does.
func EchoReply(cmd map[string]any) map[string]any {
	return map[string]any{
		"cmd":   codec.String(cmd, "cmd"),
		"evt":   nil,
		"nonce": codec.String(cmd, "nonce"),
		"data":  codec.Object(cmd, "args")["activity"],
	}
}

// ErrorReply rejects every command.
func ErrorReply(cmd map[string]any) map[string]any {
	return map[string]any{
		"cmd":   codec.String(cmd, "cmd"),
		"evt":   "ERROR",
		"nonce": codec.String(cmd, "nonce"),
		"data":  map[string]any{"code": 4000, "message": "child \"activity\" fails"},
	}
}

// Listen starts a server at path. It is closed with the test.
func Listen(t testing.TB, path string, opts ...Option) *Server {
	t.Helper()
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen %s: %v", path, err)
	}
	s := &Server{
		Path:           path,
		ln:             ln,
		handshakeReply: ReadyReply(),
		reply:          EchoReply,
		conns:          make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// TempDir returns a short directory so socket paths stay under the sun_path limit.
func TempDir(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// SocketPath is dir/discord-ipc-i.
func SocketPath(dir string, i int) string {
	return filepath.Join(dir, "discord-ipc-"+strconv.Itoa(i))
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer s.forget(conn)

	for {
		f, err := ipc.ReadFrame(conn)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.frames = append(s.frames, f)
		s.mu.Unlock()

		switch f.Opcode {
		case ipc.OpHandshake:
			if err := ipc.WriteFrame(conn, ipc.OpFrame, s.handshakeReply); err != nil {
				return
			}
		case ipc.OpFrame:
			reply := s.reply(f.Payload)
			if reply == nil {
				return
			}
			if err := ipc.WriteFrame(conn, ipc.OpFrame, reply); err != nil {
				return
			}
		case ipc.OpClose:
			return
		}
	}
}

func (s *Server) forget(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// Frames returns every frame received so far, in order.
func (s *Server) Frames() []ipc.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ipc.Frame(nil), s.frames...)
}

// Commands returns the payloads of received OpFrame frames.
func (s *Server) Commands() []map[string]any {
	var cmds []map[string]any
	for _, f := range s.Frames() {
		if f.Opcode == ipc.OpFrame {
			cmds = append(cmds, f.Payload)
		}
	}
	return cmds
}

// Count returns how many frames with op were received.
func (s *Server) Count(op ipc.OpCode) int {
	n := 0
	for _, f := range s.Frames() {
		if f.Opcode == op {
			n++
		}
	}
	return n
}

// DropConnections closes every open connection, as if the client app quit.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *Server) Close() {
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return
	}
	s.DropConnections()
	s.wg.Wait()
}

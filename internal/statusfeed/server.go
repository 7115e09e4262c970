package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
)

// Controller carries out commands received on the control channel.
type Controller interface {
	SetEnabled(enabled bool)
	Toggle()
	Reconnect()
	Quit()
}

// Command is a control message from a client, e.g. {"cmd":"toggle"}.
type Command struct {
	Cmd string `json:"cmd"`
}

// Message is what the server sends: either a status update or a reply to
// a command.
type Message struct {
	Type   string  `json:"type"` // "status" | "reply"
	Status *Status `json:"status,omitempty"`
	Cmd    string  `json:"cmd,omitempty"`
	OK     bool    `json:"ok,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type Server struct {
	addr     string
	hub      *Hub
	ctl      Controller
	gatherer prometheus.Gatherer
	log      *logx.Logger
}

// New builds the feed server. A nil gatherer leaves /metrics unregistered.
func New(addr string, hub *Hub, ctl Controller, gatherer prometheus.Gatherer) *Server {
	return &Server{
		addr:     addr,
		hub:      hub,
		ctl:      ctl,
		gatherer: gatherer,
		log:      logx.NewLogger("statusfeed"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /status", s.handleStatus)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status feed listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.log.Info("status feed on http://%s", ln.Addr())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.Snapshot()); err != nil {
		s.log.Debug("write status: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.log.Warn("ws accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	replies := make(chan Message, 4)
	go s.readCommands(ctx, cancel, conn, replies)

	snap := s.hub.Snapshot()
	if err := wsjson.Write(ctx, conn, Message{Type: "status", Status: &snap}); err != nil {
		return
	}
	for {
		var msg Message
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			msg = Message{Type: "status", Status: &st}
		case msg = <-replies:
		}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			s.log.Debug("ws write: %v", err)
			return
		}
	}
}

// readCommands runs commands until the client goes away, then cancels the
// connection context.
func (s *Server) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, replies chan<- Message) {
	defer cancel()
	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.log.Debug("ws read: %v", err)
			}
			return
		}
		reply := s.dispatch(cmd)
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) dispatch(cmd Command) Message {
	reply := Message{Type: "reply", Cmd: cmd.Cmd, OK: true}
	switch cmd.Cmd {
	case "enable":
		s.ctl.SetEnabled(true)
	case "disable":
		s.ctl.SetEnabled(false)
	case "toggle":
		s.ctl.Toggle()
	case "reconnect":
		s.ctl.Reconnect()
	case "quit":
		s.ctl.Quit()
	case "":
		reply.OK = false
		reply.Error = "missing cmd"
	default:
		reply.OK = false
		reply.Error = fmt.Sprintf("unknown cmd %q", cmd.Cmd)
	}
	if reply.OK {
		s.log.Info("control: %s", cmd.Cmd)
	}
	return reply
}

// Package supervisor owns the lifetime of the IPC link: it keeps at most one
// connection attempt in flight and retries on a fixed interval until one
// succeeds. All of its state lives on the coordination loop.
package supervisor

import (
	"context"
	"iter"
	"time"

	"github.com/ilNikk/Apple-Music-Discord-Presence/client"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/metrics"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/runloop"
)

// DefaultRetryInterval is the fixed delay between connection attempts.
const DefaultRetryInterval = 10 * time.Second

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Event reports a status change. Err is the failure that caused it, if any.
type Event struct {
	Status Status
	Err    error
}

// Observer is called on the loop goroutine for every status change.
type Observer func(Event)

type Config struct {
	// NewLink returns a fresh, disconnected link for each attempt.
	NewLink       func() client.Link
	Candidates    iter.Seq[string]
	RetryInterval time.Duration
	Logger        *logx.Logger
	Metrics       metrics.Recorder
}

type Supervisor struct {
	loop       *runloop.Loop
	newLink    func() client.Link
	candidates iter.Seq[string]
	interval   time.Duration
	log        *logx.Logger
	metrics    metrics.Recorder

	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned.
	link      client.Link
	inFlight  bool
	attempt   uint64
	stopRetry func()
	retryGen  uint64
	status    Status
	observers []Observer
	closed    bool
}

func New(loop *runloop.Loop, cfg Config) *Supervisor {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.NewLogger("supervisor")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		loop:       loop,
		newLink:    cfg.NewLink,
		candidates: cfg.Candidates,
		interval:   cfg.RetryInterval,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Observe registers fn for status changes. Safe from any goroutine.
func (s *Supervisor) Observe(fn Observer) {
	s.loop.Post(func() { s.observers = append(s.observers, fn) })
}

// RequestConnect starts an attempt unless one is already in flight or a
// link is connected. The retry timer is stopped while an attempt runs and
// re-armed only if it fails.
func (s *Supervisor) RequestConnect() {
	s.loop.Post(s.requestConnect)
}

// ForceReconnect drops the current link and any pending retry and connects now.
func (s *Supervisor) ForceReconnect() {
	s.loop.Post(func() {
		if s.closed {
			return
		}
		s.log.Info("reconnect requested")
		s.cancelRetry()
		s.teardown()
		s.inFlight = false
		s.requestConnect()
	})
}

// NotifyLinkLost tears link down if it is still current and schedules a retry.
// Reports about links that were already replaced are ignored.
func (s *Supervisor) NotifyLinkLost(link client.Link) {
	s.loop.Post(func() {
		if s.closed || link == nil || link != s.link {
			return
		}
		s.log.Warn("connection lost, retrying every %s", s.interval)
		s.teardown()
		s.metrics.IncLinkLost()
		s.setStatus(StatusLost, client.ErrLinkLost)
		s.armRetry()
	})
}

// Current returns the link if it is Ready. Loop goroutine only.
func (s *Supervisor) Current() client.Link {
	if s.link == nil || s.link.State() != client.Ready {
		return nil
	}
	return s.link
}

// Status returns the last reported status. Loop goroutine only.
func (s *Supervisor) Status() Status {
	return s.status
}

// Close stops retrying and returns the current link, if any, so the caller
// can clear the activity before disconnecting it. No attempt starts afterwards.
func (s *Supervisor) Close() client.Link {
	var link client.Link
	s.loop.Call(func() {
		s.closed = true
		s.cancelRetry()
		s.cancel()
		link = s.link
		s.link = nil
	})
	return link
}

func (s *Supervisor) requestConnect() {
	if s.closed || s.inFlight {
		return
	}
	if s.Current() != nil {
		return
	}
	s.cancelRetry()
	s.teardown()
	s.inFlight = true
	s.attempt++
	gen := s.attempt
	link := s.newLink()
	if s.status != StatusReconnecting && s.status != StatusLost {
		s.setStatus(StatusConnecting, nil)
	}

	ctx, candidates := s.ctx, s.candidates
	runloop.Dispatch(s.loop, func() error {
		return link.Connect(ctx, candidates)
	}, func(err error) {
		s.connected(gen, link, err)
	})
}

func (s *Supervisor) connected(gen uint64, link client.Link, err error) {
	if s.closed || gen != s.attempt {
		s.log.Debug("discarding superseded attempt %d", gen)
		if err == nil {
			go link.Disconnect()
		}
		return
	}
	s.inFlight = false
	s.metrics.ObserveConnectAttempt(err == nil)

	if err != nil {
		s.log.Debug("attempt %d failed: %v", gen, err)
		if s.status == StatusConnecting {
			s.log.Info("chat client not reachable, retrying every %s", s.interval)
		}
		s.setStatus(StatusReconnecting, err)
		s.armRetry()
		return
	}

	s.link = link
	s.cancelRetry()
	s.setStatus(StatusConnected, nil)
}

func (s *Supervisor) armRetry() {
	if s.stopRetry != nil {
		return
	}
	s.retryGen++
	gen := s.retryGen
	s.stopRetry = s.loop.Every(s.interval, func() {
		// A tick queued before cancelRetry still runs.
		if s.closed || s.stopRetry == nil || s.retryGen != gen {
			return
		}
		s.retry()
	})
}

func (s *Supervisor) cancelRetry() {
	if s.stopRetry == nil {
		return
	}
	s.stopRetry()
	s.stopRetry = nil
	s.retryGen++
}

func (s *Supervisor) retry() {
	if s.inFlight {
		return
	}
	s.log.Debug("retrying connection")
	s.setStatus(StatusReconnecting, nil)
	s.teardown()
	s.requestConnect()
}

// teardown disconnects the current link off the loop.
func (s *Supervisor) teardown() {
	if s.link == nil {
		return
	}
	link := s.link
	s.link = nil
	s.metrics.ObserveLinkStatus(false)
	go link.Disconnect()
}

func (s *Supervisor) setStatus(status Status, err error) {
	changed := status != s.status
	s.status = status
	s.metrics.ObserveLinkStatus(status == StatusConnected)
	if !changed && err == nil {
		return
	}
	ev := Event{Status: status, Err: err}
	for _, fn := range s.observers {
		fn(ev)
	}
}

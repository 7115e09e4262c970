// Package daemon wires the presence agent together and runs it until it is
// told to quit.
package daemon

import (
	"context"
	"errors"
	"iter"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ilNikk/Apple-Music-Discord-Presence/artwork/itunes"
	"github.com/ilNikk/Apple-Music-Discord-Presence/client"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/config"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/metrics"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/runloop"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/statusfeed"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/updater"
	"github.com/ilNikk/Apple-Music-Discord-Presence/presence"
	"github.com/ilNikk/Apple-Music-Discord-Presence/source/mpd"
	"github.com/ilNikk/Apple-Music-Discord-Presence/supervisor"
	"github.com/ilNikk/Apple-Music-Discord-Presence/transport/ipc"
)

// Options configure a Daemon. Only Settings is required; the rest replace
// the defaults derived from it.
type Options struct {
	Settings *config.Settings
	// SettingsPath is watched for changes when set.
	SettingsPath string

	Source     presence.TrackSource
	Artwork    presence.ArtworkResolver
	Candidates iter.Seq[string]
	// StatusListener serves the status feed instead of Settings.Status.Listen.
	StatusListener net.Listener
	Checker        *updater.Checker
}

type Daemon struct {
	settings *config.Settings
	log      *logx.Logger

	loop     *runloop.Loop
	sup      *supervisor.Supervisor
	orch     *presence.Orchestrator
	hub      *statusfeed.Hub
	feed     *statusfeed.Server
	registry *prometheus.Registry
	checker  *updater.Checker

	settingsPath string
	listener     net.Listener
	fileEnabled  atomic.Bool

	quit     chan struct{}
	quitOnce sync.Once
}

// New builds every component but starts nothing.
func New(opts Options) (*Daemon, error) {
	s := opts.Settings
	if s == nil {
		s = config.NewSettings()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	d := &Daemon{
		settings:     s,
		log:          logx.NewLogger("daemon"),
		loop:         runloop.New(),
		hub:          statusfeed.NewHub(),
		registry:     prometheus.NewRegistry(),
		checker:      opts.Checker,
		settingsPath: opts.SettingsPath,
		listener:     opts.StatusListener,
		quit:         make(chan struct{}),
	}
	d.fileEnabled.Store(fileEnabled(opts.SettingsPath, s))
	d.hub.SetNowPlaying(presence.NowPlaying{Enabled: s.Presence.Enabled})
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewPrometheusRecorder(d.registry)

	candidates := opts.Candidates
	if candidates == nil {
		candidates = ipc.Candidates()
	}
	d.sup = supervisor.New(d.loop, supervisor.Config{
		NewLink: func() client.Link {
			return client.NewClient(s.ClientID,
				client.WithHandshakeTimeout(s.Presence.HandshakeTimeout),
				client.WithLogger(logx.NewLogger("client")),
			)
		},
		Candidates:    candidates,
		RetryInterval: s.Presence.RetryInterval,
		Logger:        logx.NewLogger("supervisor"),
		Metrics:       rec,
	})

	source := opts.Source
	if source == nil {
		source = newSource(s)
	}
	artwork := opts.Artwork
	if artwork == nil {
		var err error
		if artwork, err = newArtwork(s); err != nil {
			return nil, err
		}
	}
	d.orch = presence.New(d.loop, presence.Config{
		Source:       source,
		Artwork:      artwork,
		Links:        d.sup,
		PollInterval: s.Presence.PollInterval,
		Disabled:     !s.Presence.Enabled,
		Logger:       logx.NewLogger("presence"),
		Metrics:      rec,
	})

	if s.Status.Enabled || d.listener != nil {
		d.feed = statusfeed.New(s.Status.Listen, d.hub, d, d.registry)
	}
	if d.checker == nil && s.Updates.CheckOnStartup {
		d.checker = updater.NewChecker()
	}
	return d, nil
}

// fileEnabled is presence.enabled as the settings file has it, before any
// command line override.
func fileEnabled(path string, s *config.Settings) bool {
	if path == "" {
		return s.Presence.Enabled
	}
	onDisk, err := config.LoadSettingsFrom(path)
	if err != nil {
		return s.Presence.Enabled
	}
	return onDisk.Presence.Enabled
}

func newSource(s *config.Settings) presence.TrackSource {
	if s.Source.Kind == config.SourceNone {
		return idleSource{}
	}
	m := s.Source.MPD
	cfg := mpd.ConfigFromEnv(mpd.Config{
		Network:  m.Network,
		Address:  m.Address,
		Password: m.Password,
		Timeout:  m.Timeout,
	}, os.Getenv)
	return mpd.New(cfg)
}

func newArtwork(s *config.Settings) (presence.ArtworkResolver, error) {
	if !s.Artwork.Enabled {
		return presence.NoArtwork{}, nil
	}
	return itunes.New(itunes.Config{
		CacheSize: s.Artwork.CacheSize,
		Timeout:   s.Artwork.Timeout,
		Country:   s.Artwork.Country,
	})
}

// idleSource never reports a track; the daemon then only keeps the link up.
type idleSource struct{}

func (idleSource) CurrentTrack(context.Context) (*presence.Track, error) { return nil, nil }

// Registry exposes the metrics registry served on /metrics.
func (d *Daemon) Registry() *prometheus.Registry {
	return d.registry
}

// Run starts the agent and blocks until ctx is cancelled, Quit is called or
// the status feed fails. On the way out the activity is cleared and the link
// closed.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	go func() { _ = d.loop.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-d.loop.Done()
	}()

	d.sup.Observe(d.onLinkEvent)
	d.orch.Observe(d.hub.SetNowPlaying)

	d.log.Info("starting, client id %s", d.settings.ClientID)
	d.sup.RequestConnect()
	d.orch.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-d.quit:
			d.log.Info("quit requested")
			cancel()
		}
		return nil
	})
	if d.feed != nil {
		g.Go(func() error {
			if d.listener != nil {
				return d.feed.Serve(gctx, d.listener)
			}
			return d.feed.Run(gctx)
		})
	}
	if d.checker != nil {
		g.Go(func() error {
			d.checkForUpdate(gctx)
			return nil
		})
	}
	if d.settingsPath != "" {
		w, err := config.NewWatcher(d.settingsPath, d.applySettings)
		if err != nil {
			d.log.Warn("settings watcher: %v", err)
		} else if err := w.Start(); err != nil {
			d.log.Warn("settings watcher: %v", err)
		} else {
			defer w.Stop()
		}
	}

	err := g.Wait()
	d.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) onLinkEvent(ev supervisor.Event) {
	d.hub.SetLink(ev)
	switch ev.Status {
	case supervisor.StatusConnected:
		d.orch.Refresh()
	case supervisor.StatusLost:
		d.orch.ResetIdentity()
	}
}

// shutdown clears the activity on a ready link before closing it.
func (d *Daemon) shutdown() {
	d.log.Info("shutting down")
	d.orch.Stop()
	link := d.sup.Close()
	if link == nil {
		return
	}
	if link.State() == client.Ready {
		if err := link.ClearActivity(); err != nil {
			d.log.Warn("clear activity on exit: %v", err)
		}
	}
	link.Disconnect()
}

func (d *Daemon) checkForUpdate(ctx context.Context) {
	res, err := d.checker.Check(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.log.Debug("update check: %v", err)
		}
		return
	}
	if res.Available {
		d.log.Info("update available: %s -> %s (%s)", res.CurrentVersion, res.LatestVersion, res.ReleaseURL)
	}
}

// applySettings reacts to edits of the settings file. Only a change of
// presence.enabled in the file is applied, so a toggle from the control
// channel survives unrelated edits.
func (d *Daemon) applySettings(s *config.Settings) {
	enabled := s.Presence.Enabled
	if d.fileEnabled.Swap(enabled) == enabled {
		return
	}
	d.log.Info("settings changed, presence enabled: %t", enabled)
	d.orch.SetEnabled(enabled)
}

func (d *Daemon) SetEnabled(enabled bool) { d.orch.SetEnabled(enabled) }

func (d *Daemon) Toggle() { d.orch.Toggle() }

func (d *Daemon) Reconnect() { d.sup.ForceReconnect() }

// Quit makes Run return. Safe to call more than once.
func (d *Daemon) Quit() {
	d.quitOnce.Do(func() { close(d.quit) })
}

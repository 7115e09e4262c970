// Package presence turns player snapshots into activity updates on the
// current link.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/ilNikk/Apple-Music-Discord-Presence/client"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/metrics"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/runloop"
)

const DefaultPollInterval = 5 * time.Second

// NowPlaying is what the orchestrator last published.
type NowPlaying struct {
	Enabled    bool   `json:"enabled"`
	Track      *Track `json:"track,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

type Config struct {
	Source       TrackSource
	Artwork      ArtworkResolver
	Links        LinkSource
	PollInterval time.Duration
	// Disabled starts the orchestrator with presence turned off.
	Disabled bool
	Logger   *logx.Logger
	Metrics  metrics.Recorder
}

type Orchestrator struct {
	loop     *runloop.Loop
	source   TrackSource
	artwork  ArtworkResolver
	links    LinkSource
	interval time.Duration
	log      *logx.Logger
	metrics  metrics.Recorder

	// Loop-owned.
	ctx        context.Context
	enabled    bool
	lastTrack  string
	nowPlaying NowPlaying
	stopTicker func()
	observers  []func(NowPlaying)
}

func New(loop *runloop.Loop, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Artwork == nil {
		cfg.Artwork = NoArtwork{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.NewLogger("presence")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	return &Orchestrator{
		loop:       loop,
		source:     cfg.Source,
		artwork:    cfg.Artwork,
		links:      cfg.Links,
		interval:   cfg.PollInterval,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		ctx:        context.Background(),
		enabled:    !cfg.Disabled,
		nowPlaying: NowPlaying{Enabled: !cfg.Disabled},
	}
}

// Observe registers fn for every published change. fn runs on the loop.
func (o *Orchestrator) Observe(fn func(NowPlaying)) {
	o.loop.Post(func() { o.observers = append(o.observers, fn) })
}

// Start polls the track source every interval until Stop. ctx is passed to
// the source and the artwork resolver.
func (o *Orchestrator) Start(ctx context.Context) {
	o.loop.Post(func() {
		if o.stopTicker != nil {
			return
		}
		o.ctx = ctx
		o.stopTicker = o.loop.Every(o.interval, o.tick)
		o.tick()
	})
}

func (o *Orchestrator) Stop() {
	o.loop.Post(func() {
		if o.stopTicker != nil {
			o.stopTicker()
			o.stopTicker = nil
		}
	})
}

// Tick polls once outside the schedule.
func (o *Orchestrator) Tick() {
	o.loop.Post(o.tick)
}

func (o *Orchestrator) SetEnabled(enabled bool) {
	o.loop.Post(func() { o.setEnabled(enabled) })
}

func (o *Orchestrator) Toggle() {
	o.loop.Post(func() { o.setEnabled(!o.enabled) })
}

// ResetIdentity forgets the last pushed track so the next tick pushes again.
// Loop goroutine only.
func (o *Orchestrator) ResetIdentity() {
	o.lastTrack = ""
}

// Refresh resets the identity and polls now. Loop goroutine only.
func (o *Orchestrator) Refresh() {
	o.ResetIdentity()
	o.tick()
}

// Enabled reports the toggle. Loop goroutine only.
func (o *Orchestrator) Enabled() bool {
	return o.enabled
}

func (o *Orchestrator) setEnabled(enabled bool) {
	if enabled == o.enabled {
		return
	}
	o.enabled = enabled
	if enabled {
		o.log.Info("presence enabled")
		o.publish(NowPlaying{Enabled: true})
		o.tick()
		return
	}

	o.log.Info("presence disabled")
	o.lastTrack = ""
	o.publish(NowPlaying{Enabled: false})
	o.clear()
}

type snapshot struct {
	track *Track
	err   error
}

func (o *Orchestrator) tick() {
	if !o.enabled {
		return
	}
	ctx := o.ctx
	runloop.Dispatch(o.loop, func() snapshot {
		t, err := o.source.CurrentTrack(ctx)
		return snapshot{track: t, err: err}
	}, o.observed)
}

func (o *Orchestrator) observed(s snapshot) {
	if !o.enabled {
		return
	}
	if s.err != nil {
		o.log.Warn("track source: %v", s.err)
		return
	}

	if s.track == nil {
		if o.lastTrack == "" {
			return
		}
		o.log.Info("playback stopped")
		o.lastTrack = ""
		o.publish(NowPlaying{Enabled: true})
		o.clear()
		return
	}

	track := *s.track
	key := track.Key()
	if key == o.lastTrack {
		return
	}
	o.lastTrack = key
	o.log.Info("now playing: %s by %s", track.Name, track.Artist)
	o.publish(NowPlaying{Enabled: true, Track: &track})

	ctx := o.ctx
	runloop.Dispatch(o.loop, func() string {
		url, ok := o.artwork.Resolve(ctx, track)
		if !ok {
			return ""
		}
		return url
	}, func(url string) {
		o.send(track, url)
	})
}

func (o *Orchestrator) send(track Track, artworkURL string) {
	if !o.enabled || o.lastTrack != track.Key() {
		o.log.Debug("dropping superseded update for %s", track.Key())
		return
	}
	if artworkURL != "" {
		o.publish(NowPlaying{Enabled: true, Track: &track, ArtworkURL: artworkURL})
	}

	link := o.links.Current()
	if link == nil {
		o.log.Debug("no link, %s will be pushed after reconnect", track.Key())
		o.lastTrack = ""
		return
	}

	runloop.Dispatch(o.loop, func() error {
		return link.SendActivity(track.Name, "by "+track.Artist, track.Name, artworkURL, track.Album)
	}, func(err error) {
		o.metrics.ObserveActivityUpdate(metrics.KindSet, err == nil)
		if err == nil {
			o.log.Debug("activity set for %s", track.Key())
			return
		}
		o.log.Warn("set activity: %v", err)
		if errors.Is(err, client.ErrLinkLost) || link.State() == client.Disconnected {
			o.links.NotifyLinkLost(link)
		}
	})
}

// clear removes the activity if a link is up. Failures are not retried.
func (o *Orchestrator) clear() {
	link := o.links.Current()
	if link == nil {
		return
	}
	runloop.Dispatch(o.loop, link.ClearActivity, func(err error) {
		o.metrics.ObserveActivityUpdate(metrics.KindClear, err == nil)
		if err != nil {
			o.log.Warn("clear activity: %v", err)
			if link.State() == client.Disconnected {
				o.links.NotifyLinkLost(link)
			}
		}
	})
}

func (o *Orchestrator) publish(np NowPlaying) {
	o.nowPlaying = np
	for _, fn := range o.observers {
		fn(np)
	}
}

// NowPlaying returns the last published state. Loop goroutine only.
func (o *Orchestrator) NowPlaying() NowPlaying {
	return o.nowPlaying
}

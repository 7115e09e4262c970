// Package mpd reads the current track from a Music Player Daemon.
package mpd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
	"github.com/ilNikk/Apple-Music-Discord-Presence/presence"
)

const (
	DefaultAddress = "localhost:6600"
	DefaultTimeout = 3 * time.Second
)

var ErrTimeout = errors.New("mpd: timeout")

type Config struct {
	Network  string
	Address  string
	Password string
	Timeout  time.Duration
}

// Source implements presence.TrackSource. Every query uses its own connection.
type Source struct {
	cfg Config
	log *logx.Logger
}

func New(cfg Config) *Source {
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Source{cfg: cfg, log: logx.NewLogger("mpd")}
}

// ConfigFromEnv applies MPD_HOST and MPD_PORT on top of base. MPD_HOST may
// carry a password as password@host. A host containing a slash, or starting
// with @ (abstract namespace), is a unix socket.
func ConfigFromEnv(base Config, getenv func(string) string) Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := base
	host, port := getenv("MPD_HOST"), getenv("MPD_PORT")
	if host == "" && port == "" {
		return cfg
	}
	if i := strings.Index(host, "@"); i > 0 {
		cfg.Password = host[:i]
		host = host[i+1:]
	}
	if strings.Contains(host, "/") || strings.HasPrefix(host, "@") {
		cfg.Network = "unix"
		cfg.Address = host
		return cfg
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6600"
	}
	cfg.Network = "tcp"
	cfg.Address = host + ":" + port
	return cfg
}

func (s *Source) dial() (*mpd.Client, error) {
	if s.cfg.Password != "" {
		return mpd.DialAuthenticated(s.cfg.Network, s.cfg.Address, s.cfg.Password)
	}
	return mpd.Dial(s.cfg.Network, s.cfg.Address)
}

// do runs fn on a fresh connection and closes it afterwards. When ctx or the
// timeout expires first, do returns ErrTimeout without waiting for fn.
func (s *Source) do(ctx context.Context, fn func(*mpd.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	type dialed struct {
		c   *mpd.Client
		err error
	}
	dc := make(chan dialed, 1)
	go func() {
		c, err := s.dial()
		dc <- dialed{c, err}
	}()

	var c *mpd.Client
	select {
	case d := <-dc:
		if d.err != nil {
			return fmt.Errorf("mpd: connect %s %s: %w", s.cfg.Network, s.cfg.Address, d.err)
		}
		c = d.c
	case <-ctx.Done():
		go func() {
			if d := <-dc; d.c != nil {
				_ = d.c.Close()
			}
		}()
		return fmt.Errorf("%w: connect: %w", ErrTimeout, ctx.Err())
	}

	done := make(chan error, 1)
	go func() { done <- fn(c) }()

	select {
	case err := <-done:
		_ = c.Close()
		return err
	case <-ctx.Done():
		// Close can queue behind the stuck reply.
		go c.Close()
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

func (s *Source) CurrentTrack(ctx context.Context) (*presence.Track, error) {
	var track *presence.Track
	err := s.do(ctx, func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return fmt.Errorf("mpd: status: %w", err)
		}
		if status["state"] != "play" {
			return nil
		}
		song, err := c.CurrentSong()
		if err != nil {
			return fmt.Errorf("mpd: currentsong: %w", err)
		}
		track = trackFromAttrs(song)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if track != nil {
		s.log.Debug("playing %q by %q", track.Name, track.Artist)
	}
	return track, nil
}

// trackFromAttrs maps a currentsong reply. It returns nil for an empty reply.
func trackFromAttrs(song mpd.Attrs) *presence.Track {
	if len(song) == 0 {
		return nil
	}
	t := &presence.Track{
		Name:   song["Title"],
		Artist: song["Artist"],
		Album:  song["Album"],
	}
	if t.Name == "" {
		if file := song["file"]; file != "" {
			t.Name = strings.TrimSuffix(path.Base(file), path.Ext(file))
		}
	}
	if t.Artist == "" {
		t.Artist = song["AlbumArtist"]
	}
	if t.Name == "" {
		return nil
	}
	return t
}

package mpd

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilNikk/Apple-Music-Discord-Presence/presence"
)

// fakeMPD speaks just enough of the MPD protocol for status queries.
type fakeMPD struct {
	ln       net.Listener
	password string
	silent   bool

	mu       sync.Mutex
	status   map[string]string
	song     map[string]string
	commands []string
}

func startFakeMPD(t *testing.T) *fakeMPD {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeMPD{ln: ln, status: map[string]string{"state": "stop"}}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeMPD) source(password string, timeout time.Duration) *Source {
	return New(Config{Network: "tcp", Address: f.ln.Addr().String(), Password: password, Timeout: timeout})
}

func (f *fakeMPD) set(status, song map[string]string) {
	f.mu.Lock()
	f.status, f.song = status, song
	f.mu.Unlock()
}

func (f *fakeMPD) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *fakeMPD) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func writeAttrs(w *bufio.Writer, attrs map[string]string) {
	for k, v := range attrs {
		fmt.Fprintf(w, "%s: %s\n", k, v)
	}
}

func (f *fakeMPD) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	fmt.Fprint(w, "OK MPD 0.23.5\n")
	w.Flush()

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSpace(line)
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		status, song, silent, password := f.status, f.song, f.silent, f.password
		f.mu.Unlock()

		switch {
		case silent:
			time.Sleep(200 * time.Millisecond)
			return
		case cmd == "close":
			return
		case strings.HasPrefix(cmd, "password"):
			if strings.Contains(cmd, password) {
				fmt.Fprint(w, "OK\n")
			} else {
				fmt.Fprint(w, "ACK [3@0] {password} incorrect password\n")
			}
		case cmd == "status":
			writeAttrs(w, status)
			fmt.Fprint(w, "OK\n")
		case cmd == "currentsong":
			writeAttrs(w, song)
			fmt.Fprint(w, "OK\n")
		default:
			fmt.Fprint(w, "OK\n")
		}
		w.Flush()
	}
}

func TestCurrentTrackPlaying(t *testing.T) {
	f := startFakeMPD(t)
	f.set(map[string]string{"state": "play"}, map[string]string{
		"file":   "music/x/song.flac",
		"Title":  "Song A",
		"Artist": "Artist X",
		"Album":  "Album Y",
	})

	track, err := f.source("", time.Second).CurrentTrack(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &presence.Track{Name: "Song A", Artist: "Artist X", Album: "Album Y"}, track)
	assert.Contains(t, f.Commands(), "currentsong")
}

func TestCurrentTrackNotPlaying(t *testing.T) {
	for _, state := range []string{"stop", "pause"} {
		t.Run(state, func(t *testing.T) {
			f := startFakeMPD(t)
			f.set(map[string]string{"state": state}, map[string]string{"Title": "Song A"})

			track, err := f.source("", time.Second).CurrentTrack(context.Background())
			require.NoError(t, err)
			assert.Nil(t, track)
			assert.NotContains(t, f.Commands(), "currentsong")
		})
	}
}

func TestCurrentTrackWithPassword(t *testing.T) {
	f := startFakeMPD(t)
	f.mu.Lock()
	f.password = "secret"
	f.mu.Unlock()
	f.set(map[string]string{"state": "play"}, map[string]string{"Title": "Song A", "Artist": "Artist X"})

	track, err := f.source("secret", time.Second).CurrentTrack(context.Background())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "Song A", track.Name)
}

func TestCurrentTrackTimeout(t *testing.T) {
	f := startFakeMPD(t)
	f.mu.Lock()
	f.silent = true
	f.mu.Unlock()

	_, err := f.source("", 50*time.Millisecond).CurrentTrack(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCurrentTrackUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = New(Config{Address: addr, Timeout: time.Second}).CurrentTrack(context.Background())
	assert.Error(t, err)
}

func TestTrackFromAttrs(t *testing.T) {
	tests := []struct {
		name string
		song mpd.Attrs
		want *presence.Track
	}{
		{
			name: "empty",
			song: mpd.Attrs{},
		},
		{
			name: "title from file",
			song: mpd.Attrs{"file": "albums/Artist X/02 Song B.mp3", "Artist": "Artist X"},
			want: &presence.Track{Name: "02 Song B", Artist: "Artist X"},
		},
		{
			name: "album artist fallback",
			song: mpd.Attrs{"Title": "Song C", "AlbumArtist": "Various", "Album": "Hits"},
			want: &presence.Track{Name: "Song C", Artist: "Various", Album: "Hits"},
		},
		{
			name: "stream without title",
			song: mpd.Attrs{"Name": "Radio"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trackFromAttrs(tt.song))
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	base := Config{Network: "tcp", Address: DefaultAddress, Timeout: time.Second}

	tests := []struct {
		name string
		env  map[string]string
		want Config
	}{
		{
			name: "unset",
			want: base,
		},
		{
			name: "host",
			env:  map[string]string{"MPD_HOST": "media.lan"},
			want: Config{Network: "tcp", Address: "media.lan:6600", Timeout: time.Second},
		},
		{
			name: "password and port",
			env:  map[string]string{"MPD_HOST": "pw@media.lan", "MPD_PORT": "6601"},
			want: Config{Network: "tcp", Address: "media.lan:6601", Password: "pw", Timeout: time.Second},
		},
		{
			name: "socket",
			env:  map[string]string{"MPD_HOST": "/run/mpd/socket"},
			want: Config{Network: "unix", Address: "/run/mpd/socket", Timeout: time.Second},
		},
		{
			name: "password and abstract socket",
			env:  map[string]string{"MPD_HOST": "pw@@mpd"},
			want: Config{Network: "unix", Address: "@mpd", Password: "pw", Timeout: time.Second},
		},
		{
			name: "port only",
			env:  map[string]string{"MPD_PORT": "6602"},
			want: Config{Network: "tcp", Address: "localhost:6602", Timeout: time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfigFromEnv(base, func(k string) string { return tt.env[k] })
			assert.Equal(t, tt.want, got)
		})
	}
}

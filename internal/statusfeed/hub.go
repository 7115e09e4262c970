// Package statusfeed publishes link and now-playing status to local UI
// collaborators and accepts their control commands.
package statusfeed

import (
	"sync"
	"unicode/utf8"

	"github.com/ilNikk/Apple-Music-Discord-Presence/presence"
	"github.com/ilNikk/Apple-Music-Discord-Presence/supervisor"
)

// MaxTextLength is the longest status line before it is cut with "...".
const MaxTextLength = 40

type Status struct {
	Link       string          `json:"link"`
	Enabled    bool            `json:"enabled"`
	Track      *presence.Track `json:"track,omitempty"`
	ArtworkURL string          `json:"artwork_url,omitempty"`
	Text       string          `json:"text"`
	Error      string          `json:"error,omitempty"`
}

const subscriberBuffer = 16

// Hub keeps the latest Status and fans changes out to subscribers. Slow
// subscribers miss intermediate updates rather than block publishers.
type Hub struct {
	mu     sync.Mutex
	link   supervisor.Status
	err    string
	np     presence.NowPlaying
	status Status
	subs   map[chan Status]struct{}
}

func NewHub() *Hub {
	h := &Hub{
		np:   presence.NowPlaying{Enabled: true},
		subs: make(map[chan Status]struct{}),
	}
	h.status = h.build()
	return h
}

// SetLink records a supervisor status change.
func (h *Hub) SetLink(ev supervisor.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.link = ev.Status
	h.err = ""
	if ev.Err != nil {
		h.err = ev.Err.Error()
	}
	h.broadcast()
}

// SetNowPlaying records what the orchestrator published.
func (h *Hub) SetNowPlaying(np presence.NowPlaying) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.np = np
	h.broadcast()
}

func (h *Hub) Snapshot() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Subscribe returns a channel of updates and a func that ends the subscription.
func (h *Hub) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// broadcast rebuilds the status and offers it to every subscriber. h.mu must be held.
func (h *Hub) broadcast() {
	h.status = h.build()
	for ch := range h.subs {
		select {
		case ch <- h.status:
		default:
		}
	}
}

func (h *Hub) build() Status {
	s := Status{
		Link:       h.link.String(),
		Enabled:    h.np.Enabled,
		Track:      h.np.Track,
		ArtworkURL: h.np.ArtworkURL,
		Error:      h.err,
	}
	s.Text = Truncate(statusText(h.link, h.np), MaxTextLength)
	return s
}

func statusText(link supervisor.Status, np presence.NowPlaying) string {
	if !np.Enabled {
		return "⏸ Presence disabled"
	}
	switch link {
	case supervisor.StatusConnected:
		if np.Track != nil {
			return "🎵 " + np.Track.Name + " - " + np.Track.Artist
		}
		return "⏹ No track playing"
	case supervisor.StatusConnecting:
		return "🔄 Connecting..."
	case supervisor.StatusReconnecting:
		return "🔄 Reconnecting..."
	case supervisor.StatusLost:
		return "⚠️ Connection lost - Reconnecting..."
	default:
		return "❌ Discord not connected"
	}
}

// Truncate cuts s to max characters and appends "..." when it was longer.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}

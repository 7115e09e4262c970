package presence

import (
	"context"

	"github.com/ilNikk/Apple-Music-Discord-Presence/client"
)

// Track is a snapshot of what the player reports as playing.
type Track struct {
	Name    string `json:"name"`
	Artist  string `json:"artist"`
	Album   string `json:"album,omitempty"`
	StoreID string `json:"store_id,omitempty"`
}

// Key identifies a track for deduplication. Album and store id are not part
// of it, so two releases of the same song count as one.
func (t Track) Key() string {
	return t.Name + "-" + t.Artist
}

// TrackSource reports the current track, or nil when nothing is playing.
// It may block and is only called off the loop.
type TrackSource interface {
	CurrentTrack(ctx context.Context) (*Track, error)
}

// ArtworkResolver finds a cover image URL. ok is false when there is none;
// a lookup failure is reported the same way.
type ArtworkResolver interface {
	Resolve(ctx context.Context, t Track) (url string, ok bool)
}

// NoArtwork resolves nothing.
type NoArtwork struct{}

func (NoArtwork) Resolve(context.Context, Track) (string, bool) { return "", false }

// LinkSource hands out the current link. Both methods are called on the loop.
type LinkSource interface {
	Current() client.Link
	NotifyLinkLost(link client.Link)
}

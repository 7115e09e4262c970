package config

import (
	"github.com/spf13/pflag"
)

// Overrides holds command line values that take precedence over the file.
type Overrides struct {
	ClientID     string
	Source       string
	MPDAddress   string
	StatusListen string
	NoStatus     bool
	NoArtwork    bool
	Disabled     bool
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet, o *Overrides) {
	fs.StringVar(&o.ClientID, "client-id", "", "application id sent in the handshake")
	fs.StringVar(&o.Source, "source", "", `track source: "mpd" or "none"`)
	fs.StringVar(&o.MPDAddress, "mpd-address", "", "MPD address (host:port or socket path)")
	fs.StringVar(&o.StatusListen, "status-listen", "", "status feed listen address")
	fs.BoolVar(&o.NoStatus, "no-status", false, "disable the status feed")
	fs.BoolVar(&o.NoArtwork, "no-artwork", false, "do not look up cover art")
	fs.BoolVar(&o.Disabled, "disabled", false, "start with presence turned off")
}

// Apply copies every flag the user actually set onto s.
func (o *Overrides) Apply(fs *pflag.FlagSet, s *Settings) {
	if fs.Changed("client-id") {
		s.ClientID = o.ClientID
	}
	if fs.Changed("source") {
		s.Source.Kind = o.Source
	}
	if fs.Changed("mpd-address") {
		s.Source.MPD.Address = o.MPDAddress
		if len(o.MPDAddress) > 0 && (o.MPDAddress[0] == '/' || o.MPDAddress[0] == '@') {
			s.Source.MPD.Network = "unix"
		} else {
			s.Source.MPD.Network = "tcp"
		}
	}
	if fs.Changed("status-listen") {
		s.Status.Listen = o.StatusListen
	}
	if fs.Changed("no-status") {
		s.Status.Enabled = !o.NoStatus
	}
	if fs.Changed("no-artwork") {
		s.Artwork.Enabled = !o.NoArtwork
	}
	if fs.Changed("disabled") {
		s.Presence.Enabled = !o.Disabled
	}
}

package config

import (
	"fmt"
	"time"
)

// DefaultClientID is the application id registered for the presence.
const DefaultClientID = "1445087052608835676"

// Source kinds.
const (
	SourceMPD  = "mpd"
	SourceNone = "none"
)

type PresenceConfig struct {
	Enabled          bool          `yaml:"enabled"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RetryInterval    time.Duration `yaml:"retry_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type MPDConfig struct {
	Network  string        `yaml:"network"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password,omitempty"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SourceConfig struct {
	Kind string    `yaml:"kind"` // "mpd" | "none"
	MPD  MPDConfig `yaml:"mpd"`
}

type ArtworkConfig struct {
	Enabled   bool          `yaml:"enabled"`
	CacheSize int           `yaml:"cache_size"`
	Timeout   time.Duration `yaml:"timeout"`
	Country   string        `yaml:"country,omitempty"`
}

type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type UpdatesConfig struct {
	CheckOnStartup bool       `yaml:"check_on_startup"`
	LastChecked    *time.Time `yaml:"last_checked,omitempty"`
}

// Settings corresponds to ~/.nowplaying/settings.yaml.
type Settings struct {
	Version  int            `yaml:"version"`
	ClientID string         `yaml:"client_id"`
	Presence PresenceConfig `yaml:"presence"`
	Source   SourceConfig   `yaml:"source"`
	Artwork  ArtworkConfig  `yaml:"artwork"`
	Status   StatusConfig   `yaml:"status"`
	Updates  UpdatesConfig  `yaml:"updates"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version:  1,
		ClientID: DefaultClientID,
		Presence: PresenceConfig{
			Enabled:          true,
			PollInterval:     5 * time.Second,
			RetryInterval:    10 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			Kind: SourceMPD,
			MPD: MPDConfig{
				Network: "tcp",
				Address: "localhost:6600",
				Timeout: 3 * time.Second,
			},
		},
		Artwork: ArtworkConfig{
			Enabled:   true,
			CacheSize: 256,
			Timeout:   5 * time.Second,
		},
		Status: StatusConfig{
			Enabled: true,
			Listen:  "127.0.0.1:6479",
		},
		Updates: UpdatesConfig{
			CheckOnStartup: true,
		},
	}
}

// Validate rejects settings the daemon cannot run with.
func (s *Settings) Validate() error {
	if s.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if s.Presence.PollInterval <= 0 {
		return fmt.Errorf("presence.poll_interval must be positive, got %s", s.Presence.PollInterval)
	}
	if s.Presence.RetryInterval <= 0 {
		return fmt.Errorf("presence.retry_interval must be positive, got %s", s.Presence.RetryInterval)
	}
	switch s.Source.Kind {
	case SourceMPD, SourceNone:
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceMPD, SourceNone, s.Source.Kind)
	}
	if s.Status.Enabled && s.Status.Listen == "" {
		return fmt.Errorf("status.listen is required when the status feed is enabled")
	}
	return nil
}

// LoadSettings loads ~/.nowplaying/settings.yaml, or the defaults if it is missing.
func LoadSettings() (*Settings, error) {
	path, err := GlobalSettingsFile()
	if err != nil {
		return nil, err
	}
	return LoadSettingsFrom(path)
}

func LoadSettingsFrom(path string) (*Settings, error) {
	return LoadYAMLOrDefault(path, NewSettings)
}

// SaveSettings saves the settings to ~/.nowplaying/settings.yaml.
func SaveSettings(settings *Settings) error {
	path, err := GlobalSettingsFile()
	if err != nil {
		return err
	}
	return SaveYAML(path, settings)
}

// Package buildinfo holds version information injected at build time via ldflags.
package buildinfo

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Repo is the GitHub owner/name releases are published under.
const Repo = "ilNikk/Apple-Music-Discord-Presence"

// Package main is the entry point for the nowplaying agent.
package main

import (
	"os"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

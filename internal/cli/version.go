package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nowplaying %s\n", buildinfo.Version)
		if buildinfo.CommitHash != "unknown" {
			fmt.Printf("  Commit: %s (%s)\n", buildinfo.CommitHash, buildinfo.BuildDate)
		}
		fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Go: %s\n", runtime.Version())
	},
}

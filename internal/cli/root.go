// Package cli implements the nowplaying commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/config"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
)

var (
	verbose      bool
	settingsPath string
)

var rootCmd = &cobra.Command{
	Use:   "nowplaying",
	Short: "Show the track you are listening to as your chat presence",
	Long: `nowplaying polls a music player and mirrors the current track into the
desktop chat client's rich presence over its local IPC endpoint.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logx.SetVerbose(true)
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "settings file (default ~/.nowplaying/settings.yaml)")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(endpointsCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveSettingsPath returns --config or the global settings file.
func resolveSettingsPath() (string, error) {
	if settingsPath != "" {
		return settingsPath, nil
	}
	return config.GlobalSettingsFile()
}

func loadSettings() (*config.Settings, string, error) {
	path, err := resolveSettingsPath()
	if err != nil {
		return nil, "", err
	}
	s, err := config.LoadSettingsFrom(path)
	if err != nil {
		return nil, "", err
	}
	return s, path, nil
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/config"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/updater"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a newer release",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Checking for updates...")

		result, err := updater.NewChecker().Check(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}
		recordCheck()

		if !result.Available {
			fmt.Printf("Already up to date (v%s).\n", result.CurrentVersion)
			return nil
		}
		fmt.Printf("Update available: v%s → v%s\n", result.CurrentVersion, result.LatestVersion)
		fmt.Printf("Release: %s\n", result.ReleaseURL)
		return nil
	},
}

// recordCheck stores the time of the last check when a settings file exists.
func recordCheck() {
	s, path, err := loadSettings()
	if err != nil || !config.FileExists(path) {
		return
	}
	now := time.Now().UTC()
	s.Updates.LastChecked = &now
	_ = config.SaveYAML(path, s)
}

package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/config"
	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/daemon"
)

var runOverrides config.Overrides

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the presence agent in the foreground",
	RunE:  runAgent,
}

func init() {
	config.BindFlags(runCmd.Flags(), &runOverrides)
}

func runAgent(cmd *cobra.Command, args []string) error {
	s, path, err := loadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	runOverrides.Apply(cmd.Flags(), s)

	opts := daemon.Options{Settings: s}
	if config.FileExists(path) {
		opts.SettingsPath = path
	}
	d, err := daemon.New(opts)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

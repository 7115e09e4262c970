package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ilNikk/Apple-Music-Discord-Presence/client"
	"github.com/ilNikk/Apple-Music-Discord-Presence/transport/ipc"
)

var probeClientID string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Connect to the chat client once and report the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := loadSettings()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if cmd.Flags().Changed("client-id") {
			s.ClientID = probeClientID
		}

		c := client.NewClient(s.ClientID, client.WithHandshakeTimeout(s.Presence.HandshakeTimeout))
		ctx, cancel := context.WithTimeout(cmd.Context(), s.Presence.HandshakeTimeout+5*time.Second)
		defer cancel()

		start := time.Now()
		if err := c.Connect(ctx, ipc.Candidates()); err != nil {
			return fmt.Errorf("probe failed: %w", err)
		}
		defer c.Disconnect()
		fmt.Printf("Connected and ready in %s (client id %s).\n", time.Since(start).Round(time.Millisecond), s.ClientID)
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeClientID, "client-id", "", "application id sent in the handshake")
}

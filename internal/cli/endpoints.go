package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilNikk/Apple-Music-Discord-Presence/transport/ipc"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List the IPC endpoints tried, in order",
	Run: func(cmd *cobra.Command, args []string) {
		found := 0
		for path := range ipc.Candidates() {
			mark := " "
			if _, err := os.Stat(path); err == nil {
				mark = "*"
				found++
			}
			fmt.Printf("%s %s\n", mark, path)
		}
		if found == 0 {
			fmt.Println("No endpoint exists. Is the chat client running?")
		}
	},
}

package cmd

import (
	"clipsync/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the clipsync HTTP server",
	Long:  `Runs the editor backend: session API, event websocket, and waveform extraction.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

package cmd

import (
	"MusicPro/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the MusicPro server",
	Long:  `Start the MusicPro HTTP server, serving the upload API and the web UI.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "miraibridge",
	Short: "miraibridge connects bot accounts to mirai-api-http",
	Long: `miraibridge bridges a bot host to mirai-api-http v2 over websockets.

It either dials mirai-api-http for every configured account (client mode) or
accepts mirai's reverse websocket connections (server mode), decodes pushed
events, and correlates API calls with their responses.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

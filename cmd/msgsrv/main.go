// Msgsrv is a concurrent request/response message server.
//
// The server accepts TCP connections (and optionally WebSocket connections),
// services each one on a bounded worker pool, answers echo and add requests,
// and notifies every connected client before shutting down.
//
// Usage:
//
//	msgsrv serve [flags]
//	msgsrv client echo|add|raw|bench [flags]
//	msgsrv discover [flags]
//
// See 'msgsrv --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/msgsrv/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "msgsrv",
	Short: "Concurrent echo/add message server",
	Long: `A TCP message server answering protobuf-encoded echo and add requests.

Connections are serviced by a fixed-size worker pool. On shutdown every
connected client receives "Server is shutting down." before the server
waits for its workers to finish.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}

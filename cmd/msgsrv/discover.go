package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/msgsrv/internal/discovery"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find msgsrv servers on the local network",
	Long: `Browse for servers advertising the _msgsrv._tcp service over mDNS.

Servers advertise themselves when started with --advertise.`,
	Example: `  # Browse for 5 seconds (default)
  msgsrv discover

  # Longer scan for busy networks
  msgsrv discover --timeout 15s`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning for msgsrv servers (timeout: %s)...\n\n", discoverTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout

	services, err := scanner.ScanWithContext(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(services) == 0 {
		fmt.Fprintln(out, "No servers found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Start the server with --advertise")
		fmt.Fprintln(out, "  - Check that multicast (UDP 5353) is allowed on this network")
		fmt.Fprintln(out, "  - Try increasing --timeout")
		return nil
	}

	fmt.Fprintf(out, "Found %d server(s):\n\n", len(services))
	for i, svc := range services {
		fmt.Fprintf(out, "%d. %s\n", i+1, svc.Instance)
		fmt.Fprintf(out, "   Address:   %s\n", svc.Addr())
		fmt.Fprintf(out, "   Hostname:  %s\n", svc.Hostname)
		if f := svc.Framing(); f != "" {
			fmt.Fprintf(out, "   Framing:   %s\n", f)
		}
		if url := svc.WebSocketURL(); url != "" {
			fmt.Fprintf(out, "   WebSocket: %s\n", url)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Use 'msgsrv client echo --addr <address> hello' to talk to a server")
	return nil
}

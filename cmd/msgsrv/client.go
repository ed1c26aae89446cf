package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/msgsrv/internal/client"
	"github.com/muurk/msgsrv/internal/config"
	"github.com/muurk/msgsrv/internal/logging"
	"github.com/muurk/msgsrv/internal/protocol"
	"github.com/muurk/msgsrv/internal/ui"
)

// Client command flags
var (
	clientAddr     string
	clientFraming  string
	clientTimeout  time.Duration
	clientURL      string
	clientLogLevel string

	benchConns    int
	benchRequests int
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send requests to a running server",
	Long: `Send echo, add or raw requests to a running server and display the
decoded response together with its wire bytes.

Use --ws to talk to the WebSocket gateway instead of the TCP listener.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if clientLogLevel != "" {
			return logging.Initialize(clientLogLevel)
		}
		return logging.InitializeFromEnv()
	},
}

var echoCmd = &cobra.Command{
	Use:   "echo <text>...",
	Short: "Send an echo request",
	Example: `  msgsrv client echo hello world
  msgsrv client echo --ws ws://localhost:8081/ws hello`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, "Echo", &protocol.EchoRequest{Content: strings.Join(args, " ")})
	},
}

var addCmd = &cobra.Command{
	Use:     "add <a> <b>",
	Short:   "Send an add request",
	Example: `  msgsrv client add 10 20`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		b, err := parseInt32(args[1])
		if err != nil {
			return err
		}
		return runRequest(cmd, "Add", &protocol.AddRequest{A: a, B: b})
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw <hex>...",
	Short: "Send raw bytes as one message",
	Example: `  # Undecodable bytes are answered with "Bad Request!"
  msgsrv client raw de ad be ef

  # A hand-encoded echo request
  msgsrv client raw 0x0a040a026869`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := parseHexPayload(args)
		if err != nil {
			return err
		}
		return runExchange(cmd, "Raw", payload)
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Drive concurrent load and verify every response",
	Example: `  msgsrv client bench --conns 10 --requests 1000
  msgsrv client bench --framing delimited --conns 15`,
	RunE: runBench,
}

func init() {
	clientCmd.PersistentFlags().StringVar(&clientAddr, "addr", config.DefaultAddress, "Server TCP address")
	clientCmd.PersistentFlags().StringVar(&clientFraming, "framing", "raw", "Message framing (raw, delimited)")
	clientCmd.PersistentFlags().DurationVar(&clientTimeout, "timeout", client.DefaultTimeout, "Timeout per request")
	clientCmd.PersistentFlags().StringVar(&clientURL, "ws", "", "WebSocket URL (e.g. ws://localhost:8081/ws)")
	clientCmd.PersistentFlags().StringVar(&clientLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	benchCmd.Flags().IntVar(&benchConns, "conns", 10, "Concurrent connections")
	benchCmd.Flags().IntVar(&benchRequests, "requests", 100, "Requests per connection")

	clientCmd.AddCommand(echoCmd)
	clientCmd.AddCommand(addCmd)
	clientCmd.AddCommand(rawCmd)
	clientCmd.AddCommand(benchCmd)
}

func clientOptions() (client.Options, error) {
	f, err := protocol.ParseFraming(clientFraming)
	if err != nil {
		return client.Options{}, err
	}
	return client.Options{Framing: f, Timeout: clientTimeout}, nil
}

func target() string {
	if clientURL != "" {
		return clientURL
	}
	return clientAddr
}

func dial() (*client.Client, error) {
	opts, err := clientOptions()
	if err != nil {
		return nil, err
	}
	if clientURL != "" {
		return client.DialWebSocket(clientURL, opts)
	}
	return client.Dial(clientAddr, opts)
}

func runRequest(cmd *cobra.Command, title string, req protocol.Request) error {
	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}
	return runExchange(cmd, title, payload)
}

// runExchange sends payload, waits for one response and prints it.
func runExchange(cmd *cobra.Command, title string, payload []byte) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader(title, cmd.CommandPath(), map[string]string{
		"Server":  target(),
		"Framing": clientFraming,
		"Request": fmt.Sprintf("% x", payload),
	})

	c, err := dial()
	if err != nil {
		p.PrintFailure("Connection failed", err, []string{
			"Is the server running? Start it with: msgsrv serve",
			"Check --addr, or --ws for the WebSocket gateway",
		})
		return err
	}
	defer c.Close()

	if err := c.SendRaw(payload); err != nil {
		p.PrintFailure("Send failed", err, nil)
		return err
	}

	raw, err := c.ReceiveRaw()
	if err != nil {
		p.PrintFailure("No response", err, []string{
			"The server may be busy: all workers are serving other connections",
			"Check that --framing matches the server",
			"Increase --timeout",
		})
		return err
	}

	resp, err := protocol.DecodeResponse(raw)
	if err != nil {
		logging.LogRawBytes("Undecodable response", raw)
		p.PrintFailure("Undecodable response", err, []string{"Raw bytes: " + fmt.Sprintf("% x", raw)})
		return err
	}

	p.PrintResponse(resp, raw)
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	opts, err := clientOptions()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Bench", cmd.CommandPath(), map[string]string{
		"Server":      target(),
		"Framing":     clientFraming,
		"Connections": strconv.Itoa(benchConns),
		"Requests":    strconv.Itoa(benchRequests) + " per connection",
	})

	benchOpts := client.BenchOptions{
		Addr:        clientAddr,
		URL:         clientURL,
		Options:     opts,
		Connections: benchConns,
		Requests:    benchRequests,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var result client.BenchResult
	total := benchConns * benchRequests
	err = ui.RunWithProgress(ctx, cmd.OutOrStdout(), "Sending requests...", total, func(ctx context.Context, report func(int)) {
		result = client.Bench(ctx, benchOpts, report)
	})

	details := map[string]string{
		"Requests":   strconv.Itoa(result.Total),
		"Succeeded":  strconv.Itoa(result.Succeeded),
		"Failed":     strconv.Itoa(result.Failed),
		"Mismatched": strconv.Itoa(result.Mismatched),
		"Duration":   result.Elapsed.Round(time.Millisecond).String(),
		"Rate":       fmt.Sprintf("%.0f req/s", result.RequestsPerSecond()),
	}

	if err != nil || result.Failed > 0 || result.Mismatched > 0 {
		if err == nil {
			err = fmt.Errorf("%d failed, %d mismatched of %d requests", result.Failed, result.Mismatched, result.Total)
		}
		if result.FirstError != nil {
			details["First error"] = result.FirstError.Error()
		}
		r := ui.NewFailureResult("Bench failed", err, nil).SetWidth(p.Width())
		r.Details = details
		p.Println(r.Render())
		return err
	}

	p.PrintSuccess("Bench complete", details)
	return nil
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid int32 %q: %w", s, err)
	}
	return int32(v), nil
}

// parseHexPayload accepts hex bytes split across arguments, with optional
// 0x prefixes and colon separators.
func parseHexPayload(args []string) ([]byte, error) {
	var b strings.Builder
	for _, arg := range args {
		for _, part := range strings.Fields(strings.ReplaceAll(arg, ":", " ")) {
			part = strings.TrimPrefix(strings.TrimPrefix(part, "0x"), "0X")
			b.WriteString(part)
		}
	}

	payload, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return payload, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/muurk/msgsrv/internal/config"
	"github.com/muurk/msgsrv/internal/logging"
	"github.com/muurk/msgsrv/internal/server"
)

// Serve command flags
var (
	configPath   string
	addr         string
	poolSize     int
	framing      string
	wsAddr       string
	advertise    bool
	idleTimeout  time.Duration
	drainTimeout time.Duration
	logLevel     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the message server",
	Long: `Start the message server and block until SIGINT or SIGTERM.

Settings are read from the configuration file (see 'msgsrv config path')
and overridden by any flag given on the command line.`,
	Example: `  # Start on the default address (localhost:8080)
  msgsrv serve

  # Listen on all interfaces with length-prefixed framing
  msgsrv serve --addr 0.0.0.0:9000 --framing delimited

  # Also accept WebSocket clients and advertise over mDNS
  msgsrv serve --ws-addr :8081 --advertise

  # Interrupt idle clients 5 seconds after shutdown begins
  msgsrv serve --drain-timeout 5s --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (default: OS config dir)")
	serveCmd.Flags().StringVar(&addr, "addr", config.DefaultAddress, "TCP listen address (host:port)")
	serveCmd.Flags().IntVar(&poolSize, "pool-size", config.DefaultPoolSize, "Number of connection workers")
	serveCmd.Flags().StringVar(&framing, "framing", "raw", "Message framing (raw, delimited)")
	serveCmd.Flags().StringVar(&wsAddr, "ws-addr", "", "WebSocket gateway address (empty = disabled)")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise the server over mDNS")
	serveCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "Close connections idle for this long (0 = never)")
	serveCmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 0, "Interrupt idle connections this long after shutdown begins (0 = wait)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	applyServeFlags(cmd.Flags(), cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			logging.Info("Shutdown signal received, stopping server...")
			srv.Stop()
		case <-srv.Done():
		}
	}()

	err = srv.Run()
	<-stopped
	if err != nil {
		logging.Error("Server exited", zap.Error(err))
	}
	return err
}

// loadConfig reads path, or the default config file when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}

// applyServeFlags copies explicitly set flags over the file configuration.
func applyServeFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("addr") {
		cfg.Address = addr
	}
	if flags.Changed("pool-size") {
		cfg.PoolSize = poolSize
	}
	if flags.Changed("framing") {
		cfg.Framing = framing
	}
	if flags.Changed("ws-addr") {
		cfg.WebSocket.Address = wsAddr
	}
	if flags.Changed("advertise") {
		cfg.Advertise.Enabled = advertise
	}
	if flags.Changed("idle-timeout") {
		cfg.IdleTimeout = idleTimeout
	}
	if flags.Changed("drain-timeout") {
		cfg.DrainTimeout = drainTimeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/msgsrv/internal/logging"
	"github.com/muurk/msgsrv/internal/protocol"
)

// Default values
const (
	DefaultAddress        = "localhost:8080"
	DefaultPoolSize       = 15
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultReadBufferSize = protocol.DefaultMaxMessageSize
	DefaultLogLevel       = "info"
	DefaultWebSocketPath  = "/ws"

	// MaxReadBufferSize bounds read_buffer_size.
	MaxReadBufferSize = 64 * 1024
)

// Config is the server configuration.
type Config struct {
	Address        string          `yaml:"address"`          // host:port of the TCP listener
	PoolSize       int             `yaml:"pool_size"`        // Number of connection workers
	PollInterval   time.Duration   `yaml:"poll_interval"`    // Accept poll interval
	ReadBufferSize int             `yaml:"read_buffer_size"` // Max bytes per message
	Framing        string          `yaml:"framing"`          // "raw" or "delimited"
	IdleTimeout    time.Duration   `yaml:"idle_timeout"`     // Per-request read deadline (0 = none)
	DrainTimeout   time.Duration   `yaml:"drain_timeout"`    // Wait before interrupting idle readers on stop (0 = wait forever)
	LogLevel       string          `yaml:"log_level"`        // debug, info, warn, error
	WebSocket      WebSocketConfig `yaml:"websocket"`
	Advertise      AdvertiseConfig `yaml:"advertise"`
}

// WebSocketConfig enables the WebSocket gateway when Address is set.
type WebSocketConfig struct {
	Address string `yaml:"address,omitempty"` // host:port (empty = disabled)
	Path    string `yaml:"path"`              // HTTP path of the upgrade endpoint
}

// AdvertiseConfig controls mDNS advertisement of the TCP listener.
type AdvertiseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance,omitempty"` // Service instance name (empty = hostname)
}

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		Address:        DefaultAddress,
		PoolSize:       DefaultPoolSize,
		PollInterval:   DefaultPollInterval,
		ReadBufferSize: DefaultReadBufferSize,
		Framing:        string(protocol.FramingRaw),
		LogLevel:       DefaultLogLevel,
		WebSocket: WebSocketConfig{
			Path: DefaultWebSocketPath,
		},
	}
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validateAddress("address", c.Address); err != nil {
		return err
	}
	if c.PoolSize <= 0 {
		return &ValidationError{Field: "pool_size", Message: fmt.Sprintf("must be positive, got %d", c.PoolSize)}
	}
	if c.PollInterval <= 0 {
		return &ValidationError{Field: "poll_interval", Message: fmt.Sprintf("must be positive, got %s", c.PollInterval)}
	}
	if c.ReadBufferSize <= 0 || c.ReadBufferSize > MaxReadBufferSize {
		return &ValidationError{
			Field:   "read_buffer_size",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxReadBufferSize, c.ReadBufferSize),
		}
	}
	if _, err := protocol.ParseFraming(c.Framing); err != nil {
		return &ValidationError{Field: "framing", Message: err.Error()}
	}
	if c.IdleTimeout < 0 {
		return &ValidationError{Field: "idle_timeout", Message: "must not be negative"}
	}
	if c.DrainTimeout < 0 {
		return &ValidationError{Field: "drain_timeout", Message: "must not be negative"}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return &ValidationError{Field: "log_level", Message: err.Error()}
	}

	if c.WebSocket.Address != "" {
		if err := validateAddress("websocket.address", c.WebSocket.Address); err != nil {
			return err
		}
		if !strings.HasPrefix(c.WebSocket.Path, "/") {
			return &ValidationError{Field: "websocket.path", Message: fmt.Sprintf("must start with '/', got %q", c.WebSocket.Path)}
		}
	}

	return nil
}

// FramingMode returns the parsed framing. Call Validate first.
func (c *Config) FramingMode() protocol.Framing {
	f, err := protocol.ParseFraming(c.Framing)
	if err != nil {
		return protocol.FramingRaw
	}
	return f
}

func validateAddress(field, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return &ValidationError{Field: field, Message: err.Error()}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid port %q", port)}
	}
	return nil
}

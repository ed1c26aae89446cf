package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service is a msgsrv instance found on the local network.
type Service struct {
	// Instance is the advertised instance name (e.g., "build-host")
	Instance string

	// Hostname is the mDNS hostname (e.g., "build-host.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the TCP listener port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "framing=raw", "ws_port=8081", "ws_path=/ws"
	Metadata map[string]string

	// DiscoveredAt is when the service was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, s.Addr())
}

// Addr returns the host:port of the TCP listener.
func (s *Service) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// Framing returns the advertised framing, or "" if none was advertised.
func (s *Service) Framing() string {
	return s.GetMetadata("framing")
}

// WebSocketURL returns the gateway URL, or "" when the instance does not
// advertise a WebSocket port.
func (s *Service) WebSocketURL() string {
	port := s.GetMetadata("ws_port")
	if port == "" {
		return ""
	}
	path := s.GetMetadata("ws_path")
	if path == "" {
		path = "/"
	}
	return "ws://" + net.JoinHostPort(s.IP, port) + path
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

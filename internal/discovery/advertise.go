package discovery

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/msgsrv/internal/logging"
	"go.uber.org/zap"
)

// Advertisement is a registered mDNS service. Shutdown withdraws it.
type Advertisement struct {
	server   *zeroconf.Server
	instance string
}

// Advertise registers the msgsrv service for port on all interfaces.
// An empty instance uses the hostname.
func Advertise(instance string, port int, txt []string) (*Advertisement, error) {
	if instance == "" {
		instance = DefaultInstance()
	}

	srv, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising service via mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
		zap.Strings("txt", txt),
	)
	return &Advertisement{server: srv, instance: instance}, nil
}

// Instance returns the registered instance name.
func (a *Advertisement) Instance() string {
	return a.instance
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	a.server.Shutdown()
	logging.Info("mDNS advertisement withdrawn", zap.String("instance", a.instance))
}

// DefaultInstance returns the hostname, or "msgsrv" if it cannot be determined.
func DefaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "msgsrv"
	}
	return host
}

package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/msgsrv/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type msgsrv instances advertise
	ServiceType = "_msgsrv._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for service discovery
	DefaultScanTimeout = 5 * time.Second
)

// Scanner handles mDNS service discovery
type Scanner struct {
	// Timeout is the maximum time to wait for service discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan discovers all msgsrv instances on the local network
func (s *Scanner) Scan() ([]*Service, error) {
	return s.ScanWithContext(context.Background())
}

// ScanWithContext discovers services until the scanner timeout or ctx expires.
func (s *Scanner) ScanWithContext(ctx context.Context) ([]*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []*Service, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	// The resolver closes entries once ctx is done.
	go func() {
		services := make([]*Service, 0)
		seen := make(map[string]bool)
		for entry := range entries {
			svc := parseServiceEntry(entry)
			if svc == nil || seen[svc.Instance] {
				continue
			}
			seen[svc.Instance] = true
			logging.Debug("Discovered service",
				zap.String("instance", svc.Instance),
				zap.String("addr", svc.Addr()),
			)
			services = append(services, svc)
		}
		collected <- services
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	return <-collected, nil
}

// WaitForService waits for the named instance to appear.
func (s *Scanner) WaitForService(ctx context.Context, instance string) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Service, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			svc := parseServiceEntry(entry)
			if svc != nil && svc.Instance == instance {
				select {
				case found <- svc:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case svc := <-found:
		return svc, nil
	case <-ctx.Done():
		select {
		case svc := <-found:
			return svc, nil
		default:
		}
		return nil, fmt.Errorf("service %q not found within %s", instance, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Service.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Service {
	if entry == nil || entry.Port <= 0 {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	instance := entry.Instance
	if instance == "" {
		instance = strings.TrimSuffix(entry.HostName, ".")
	}

	return &Service{
		Instance:     instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Discover is a convenience function to scan with a custom timeout
func Discover(timeout time.Duration) ([]*Service, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.Scan()
}

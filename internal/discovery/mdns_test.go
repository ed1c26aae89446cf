package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func newEntry(instance, host string, port int) *zeroconf.ServiceEntry {
	entry := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	entry.HostName = host
	entry.Port = port
	return entry
}

func TestParseServiceEntry(t *testing.T) {
	withIPv4 := newEntry("alpha", "alpha.local.", 8080)
	withIPv4.AddrIPv4 = []net.IP{net.ParseIP("192.168.4.16")}
	withIPv4.Text = []string{"framing=raw"}

	ipv6Only := newEntry("beta", "beta.local.", 9000)
	ipv6Only.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}

	both := newEntry("gamma", "gamma.local.", 8080)
	both.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.50")}
	both.AddrIPv6 = []net.IP{net.ParseIP("fe80::2")}

	noInstance := newEntry("", "delta.local.", 8080)
	noInstance.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.5")}

	noAddr := newEntry("epsilon", "epsilon.local.", 8080)

	noPort := newEntry("zeta", "zeta.local.", 0)
	noPort.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.6")}

	tests := []struct {
		name         string
		entry        *zeroconf.ServiceEntry
		wantNil      bool
		wantInstance string
		wantIP       string
		wantPort     int
	}{
		{name: "IPv4", entry: withIPv4, wantInstance: "alpha", wantIP: "192.168.4.16", wantPort: 8080},
		{name: "IPv6 only", entry: ipv6Only, wantInstance: "beta", wantIP: "fe80::1", wantPort: 9000},
		{name: "prefers IPv4", entry: both, wantInstance: "gamma", wantIP: "192.168.1.50", wantPort: 8080},
		{name: "instance falls back to hostname", entry: noInstance, wantInstance: "delta.local", wantIP: "10.0.0.5", wantPort: 8080},
		{name: "no address", entry: noAddr, wantNil: true},
		{name: "no port", entry: noPort, wantNil: true},
		{name: "nil entry", entry: nil, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if svc != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", svc)
				}
				return
			}
			if svc == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil service")
			}

			if svc.Instance != tt.wantInstance {
				t.Errorf("svc.Instance = %v, want %v", svc.Instance, tt.wantInstance)
			}
			if svc.IP != tt.wantIP {
				t.Errorf("svc.IP = %v, want %v", svc.IP, tt.wantIP)
			}
			if svc.Port != tt.wantPort {
				t.Errorf("svc.Port = %v, want %v", svc.Port, tt.wantPort)
			}
			if svc.Hostname != tt.entry.HostName {
				t.Errorf("svc.Hostname = %v, want %v", svc.Hostname, tt.entry.HostName)
			}
			if time.Since(svc.DiscoveredAt) > time.Second {
				t.Errorf("svc.DiscoveredAt is not recent: %v", svc.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	entry := newEntry("alpha", "alpha.local.", 8080)
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.4.16")}
	entry.Text = []string{"framing=delimited", "ws_port=8081", "flag", "ws_path=/ws"}

	svc := parseServiceEntry(entry)
	if svc == nil {
		t.Fatal("parseServiceEntry() = nil, want service")
	}

	expectedMetadata := map[string]string{
		"framing": "delimited",
		"ws_port": "8081",
		"flag":    "", // Key without value
		"ws_path": "/ws",
	}

	if len(svc.Metadata) != len(expectedMetadata) {
		t.Errorf("svc.Metadata has %d entries, want %d", len(svc.Metadata), len(expectedMetadata))
	}
	for key, expectedValue := range expectedMetadata {
		if actualValue, ok := svc.Metadata[key]; !ok {
			t.Errorf("svc.Metadata missing key %q", key)
		} else if actualValue != expectedValue {
			t.Errorf("svc.Metadata[%q] = %q, want %q", key, actualValue, expectedValue)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()

	if scanner == nil {
		t.Fatal("NewScanner() = nil, want scanner")
	}
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func TestDefaultInstance(t *testing.T) {
	if got := DefaultInstance(); got == "" {
		t.Error("DefaultInstance() returned empty string")
	}
}

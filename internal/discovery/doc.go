// Package discovery advertises and locates msgsrv instances over mDNS.
//
// A server with advertise.enabled registers the "_msgsrv._tcp" service type
// for its TCP listener port. The TXT record carries the framing mode and,
// when the WebSocket gateway is enabled, its port and path:
//
//	framing=raw
//	ws_port=8081
//	ws_path=/ws
//
// # Usage Example
//
//	services, err := discovery.Discover(5 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, svc := range services {
//	    fmt.Printf("Found: %s at %s\n", svc.Instance, svc.Addr())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Servers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery

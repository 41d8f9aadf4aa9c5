// Package discovery publishes the server on the local network over
// mDNS/zeroconf and lets clients find it without configuration.
package discovery

import (
	"context"
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType identifies the game service in mDNS records.
	ServiceType = "_multibox._udp"
	domain      = "local."
)

// LocalIP reports the address this host would use for outbound traffic. The
// dial is UDP, so nothing is actually sent.
func LocalIP() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:1")
	if err != nil {
		return nil, fmt.Errorf("determine local ip: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}

// Register announces the service under instance on the given port. The
// returned server keeps the record alive until Shutdown.
func Register(instance string, port int) (*zeroconf.Server, error) {
	srv, err := zeroconf.Register(instance, ServiceType, domain, port, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", ServiceType, err)
	}
	return srv, nil
}

// Browse blocks until one instance of the game service is found, or ctx
// expires.
func Browse(ctx context.Context) (*net.UDPAddr, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("new resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := resolver.Browse(ctx, ServiceType, domain, entries); err != nil {
		return nil, fmt.Errorf("browse %s: %w", ServiceType, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("browse %s: %w", ServiceType, ctx.Err())
		case entry, ok := <-entries:
			if !ok {
				return nil, fmt.Errorf("browse %s: no server found", ServiceType)
			}
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}
			return &net.UDPAddr{IP: entry.AddrIPv4[0], Port: entry.Port}, nil
		}
	}
}

// Package upstream selects the resolver that forwarded queries are sent to.
// Queries leave through the listening socket, so this package only owns the
// server list and the rotation over it.
package upstream

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/haukened/rr-relay/internal/dns/services/resolver"
)

// Error message constants for consistent error handling
const (
	errNoServersProvided = "no upstream DNS servers provided"
	errInvalidServer     = "invalid upstream server %q: %w"
)

// Forwarder rotates over the configured upstream servers.
type Forwarder struct {
	servers []*net.UDPAddr
	next    atomic.Uint64
}

// NewForwarder resolves every "ip:port" server address up front.
func NewForwarder(servers []string) (*Forwarder, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf(errNoServersProvided)
	}
	addrs := make([]*net.UDPAddr, 0, len(servers))
	for _, s := range servers {
		addr, err := net.ResolveUDPAddr("udp", s)
		if err != nil {
			return nil, fmt.Errorf(errInvalidServer, s, err)
		}
		addrs = append(addrs, addr)
	}
	return &Forwarder{servers: addrs}, nil
}

// Next returns the server for the next forwarded query, round robin.
func (f *Forwarder) Next() *net.UDPAddr {
	n := f.next.Add(1) - 1
	return f.servers[n%uint64(len(f.servers))]
}

// Servers returns the configured servers in order.
func (f *Forwarder) Servers() []string {
	out := make([]string, len(f.servers))
	for i, s := range f.servers {
		out[i] = s.String()
	}
	return out
}

var _ resolver.UpstreamSelector = (*Forwarder)(nil)

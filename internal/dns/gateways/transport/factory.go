package transport

import (
	"fmt"

	"github.com/haukened/rr-relay/internal/dns/services/resolver"
)

// NewTransport creates a new transport instance based on the specified type.
func NewTransport(transportType TransportType, opts Options) (resolver.ServerTransport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPTransport(opts), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

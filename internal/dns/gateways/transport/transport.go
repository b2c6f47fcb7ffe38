// Package transport moves raw datagrams between the network and the
// resolution coordinator. It owns the socket, the worker pool and the
// janitor that expires forwarded queries; it never looks inside a message.
package transport

// TransportType represents the different types of DNS transport protocols supported.
type TransportType string

const (
	// TransportUDP represents standard DNS over UDP (RFC 1035)
	TransportUDP TransportType = "udp"
)

// Defaults applied by NewUDPTransport to zero option values.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

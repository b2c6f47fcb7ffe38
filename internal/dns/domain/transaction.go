package domain

import (
	"net"
	"time"
)

// Datagram is a raw UDP payload received from, or bound for, Addr.
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// Transaction is a query forwarded upstream and still awaiting its reply.
// Transactions are keyed by the query id.
type Transaction struct {
	ID          uint16
	Query       Message
	Client      net.Addr
	Upstream    net.Addr
	ForwardedAt time.Time
	Deadline    time.Time
}

// Expired reports whether the transaction deadline has passed at now.
func (t Transaction) Expired(now time.Time) bool {
	return now.After(t.Deadline)
}

// FromUpstream reports whether addr is the upstream the query was sent to.
func (t Transaction) FromUpstream(addr net.Addr) bool {
	return SameAddr(t.Upstream, addr)
}

// SameAddr compares two addresses. UDP addresses compare by IP and port so an
// IPv4 address matches its IPv4-mapped IPv6 form.
func SameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	ua, okA := a.(*net.UDPAddr)
	ub, okB := b.(*net.UDPAddr)
	if okA && okB {
		return ua.Port == ub.Port && ua.IP.Equal(ub.IP)
	}
	return a.Network() == b.Network() && a.String() == b.String()
}

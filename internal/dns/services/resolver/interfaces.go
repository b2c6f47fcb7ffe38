package resolver

import (
	"context"
	"net"
	"time"

	"github.com/haukened/rr-relay/internal/dns/domain"
)

// Codec converts datagrams to messages and back.
type Codec interface {
	Decode(data []byte) (domain.Message, error)
	Encode(msg domain.Message) ([]byte, error)
}

// ZoneStore serves the authoritative record set loaded at startup.
type ZoneStore interface {
	// FindRecords returns every zone record matching the question exactly.
	FindRecords(q domain.Question) ([]domain.Record, bool)
}

// Cache holds records learned from upstream replies.
type Cache interface {
	// Sweep drops every expired entry and returns how many were dropped.
	Sweep() int
	// Lookup returns the live records matching name, type and class exactly,
	// with TTL rewritten to the remaining lifetime.
	Lookup(name string, t domain.RRType, c domain.RRClass) []domain.Record
	// InsertAll appends records. Duplicates are kept.
	InsertAll(records []domain.Record)
}

// PendingTable tracks queries forwarded upstream, keyed by transaction id.
type PendingTable interface {
	// Register stores tx and returns the transaction it displaced, if any:
	// one under the same id, or the oldest when the table was full.
	Register(tx domain.Transaction) (domain.Transaction, bool)
	// Take removes and returns the transaction for id when the reply came
	// from the upstream the query was forwarded to.
	Take(id uint16, from net.Addr) (domain.Transaction, bool)
	// Expire removes and returns every transaction whose deadline passed.
	Expire(now time.Time) []domain.Transaction
	Len() int
}

// UpstreamSelector picks the upstream server for the next forwarded query.
type UpstreamSelector interface {
	Next() *net.UDPAddr
}

// PacketHandler turns one inbound datagram into zero or more outbound ones.
// The transport handles all network protocol details; the handler owns the
// resolution state.
type PacketHandler interface {
	// HandlePacket processes a datagram received from src.
	HandlePacket(ctx context.Context, data []byte, src net.Addr) []domain.Datagram

	// ExpirePending evicts timed out transactions and returns the replies
	// owed to their clients.
	ExpirePending(ctx context.Context) []domain.Datagram
}

// ServerTransport defines the interface for DNS server transport implementations.
type ServerTransport interface {
	// Start begins listening for datagrams and handing them to handler.
	Start(ctx context.Context, handler PacketHandler) error

	// Stop gracefully shuts down the transport, closing connections and cleaning up resources.
	Stop() error

	// Address returns the network address the transport is bound to.
	Address() string
}

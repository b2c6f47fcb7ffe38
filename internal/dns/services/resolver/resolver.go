// Package resolver holds the resolution coordinator: it answers queries from
// the zone and the cache, forwards misses upstream and relays the replies
// back to the client that asked.
package resolver

import (
	"context"
	"net"
	"time"

	"github.com/haukened/rr-relay/internal/dns/common/clock"
	"github.com/haukened/rr-relay/internal/dns/common/log"
	"github.com/haukened/rr-relay/internal/dns/domain"
)

// DefaultPendingTimeout is how long a forwarded query waits for its reply.
const DefaultPendingTimeout = 5 * time.Second

type Resolver struct {
	codec             Codec
	zone              ZoneStore
	cache             Cache
	pending           PendingTable
	upstream          UpstreamSelector
	clock             clock.Clock
	logger            log.Logger
	pendingTimeout    time.Duration
	servfailOnTimeout bool
}

type ResolverOptions struct {
	Codec             Codec
	Zone              ZoneStore
	Cache             Cache
	Pending           PendingTable
	Upstream          UpstreamSelector
	Clock             clock.Clock
	Logger            log.Logger
	PendingTimeout    time.Duration
	ServfailOnTimeout bool
}

func NewResolver(opts ResolverOptions) *Resolver {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = DefaultPendingTimeout
	}
	return &Resolver{
		codec:             opts.Codec,
		zone:              opts.Zone,
		cache:             opts.Cache,
		pending:           opts.Pending,
		upstream:          opts.Upstream,
		clock:             opts.Clock,
		logger:            opts.Logger,
		pendingTimeout:    opts.PendingTimeout,
		servfailOnTimeout: opts.ServfailOnTimeout,
	}
}

// HandlePacket processes one datagram. Before decoding it expires timed out
// forwarded queries and sweeps the cache, so the result may carry SERVFAIL
// replies owed to other clients besides the answer to this datagram.
func (r *Resolver) HandlePacket(ctx context.Context, data []byte, src net.Addr) []domain.Datagram {
	now := r.clock.Now()
	out := r.expire(now)
	if swept := r.cache.Sweep(); swept > 0 {
		r.logger.Debug(map[string]any{"removed": swept}, "Swept expired cache entries")
	}

	msg, err := r.codec.Decode(data)
	if err != nil {
		r.logger.Warn(map[string]any{
			"client": src.String(),
			"size":   len(data),
			"error":  err.Error(),
		}, "Dropping malformed DNS packet")
		return out
	}
	r.logger.Debug(map[string]any{"client": src.String(), "message": msg.String()}, "Decoded DNS message")

	if msg.IsQuery() {
		return append(out, r.handleQuery(data, msg, src, now)...)
	}
	if d, ok := r.handleReply(data, msg, src); ok {
		out = append(out, d)
	}
	return out
}

// ExpirePending evicts timed out forwarded queries. It is driven by the
// transport janitor between datagrams.
func (r *Resolver) ExpirePending(ctx context.Context) []domain.Datagram {
	return r.expire(r.clock.Now())
}

// handleQuery answers msg locally or forwards it. Forwarding may displace
// another client's pending query, which then gets SERVFAIL like a timeout.
func (r *Resolver) handleQuery(data []byte, msg domain.Message, src net.Addr, now time.Time) []domain.Datagram {
	var zoneRecords, cacheRecords []domain.Record
	if q := msg.Question; q != nil {
		zoneRecords, _ = r.zone.FindRecords(*q)
		cacheRecords = r.cache.Lookup(q.Name, q.Type, q.Class)
	}

	if len(zoneRecords)+len(cacheRecords) > 0 {
		answers := make([]domain.Record, 0, len(zoneRecords)+len(cacheRecords))
		answers = append(answers, zoneRecords...)
		answers = append(answers, cacheRecords...)
		// Authoritative only when nothing came from the cache.
		authoritative := len(cacheRecords) == 0

		resp := domain.NewResponse(msg, answers, authoritative)
		payload, err := r.codec.Encode(resp)
		if err != nil {
			r.logger.Error(map[string]any{
				"id":      msg.Header.ID,
				"answers": len(answers),
				"error":   err.Error(),
			}, "Failed to encode DNS response")
			payload, err = r.codec.Encode(domain.NewErrorResponse(msg, domain.SERVFAIL))
			if err != nil {
				return nil
			}
		}
		r.logger.Info(map[string]any{
			"id":            msg.Header.ID,
			"client":        src.String(),
			"question":      msg.Question.String(),
			"zone":          len(zoneRecords),
			"cache":         len(cacheRecords),
			"authoritative": authoritative,
		}, "Answered query locally")
		return []domain.Datagram{{Data: payload, Addr: src}}
	}

	upstream := r.upstream.Next()
	tx := domain.Transaction{
		ID:          msg.Header.ID,
		Query:       msg,
		Client:      src,
		Upstream:    upstream,
		ForwardedAt: now,
		Deadline:    now.Add(r.pendingTimeout),
	}
	out := []domain.Datagram{{Data: data, Addr: upstream}}
	if old, displaced := r.pending.Register(tx); displaced {
		if old.ID == tx.ID {
			r.logger.Warn(map[string]any{
				"id":         msg.Header.ID,
				"old_client": old.Client.String(),
				"new_client": src.String(),
			}, "Replaced pending query with the same id")
		} else {
			r.logger.Warn(map[string]any{
				"id":     old.ID,
				"client": old.Client.String(),
			}, "Pending table full, dropped oldest forwarded query")
			if d, ok := r.servfail(old); ok {
				out = append(out, d)
			}
		}
	}
	r.logger.Info(map[string]any{
		"id":       msg.Header.ID,
		"client":   src.String(),
		"upstream": upstream.String(),
	}, "Forwarding query upstream")
	return out
}

func (r *Resolver) handleReply(data []byte, msg domain.Message, src net.Addr) (domain.Datagram, bool) {
	tx, ok := r.pending.Take(msg.Header.ID, src)
	if !ok {
		r.logger.Debug(map[string]any{
			"id":   msg.Header.ID,
			"from": src.String(),
		}, "Dropping reply with no pending query")
		return domain.Datagram{}, false
	}

	cacheable := make([]domain.Record, 0, len(msg.Answers))
	for _, rr := range msg.Answers {
		if rr.Type.IsCacheable() {
			cacheable = append(cacheable, rr)
		}
	}
	if len(cacheable) > 0 {
		r.cache.InsertAll(cacheable)
	}

	r.logger.Info(map[string]any{
		"id":      msg.Header.ID,
		"client":  tx.Client.String(),
		"rcode":   msg.Header.Flags.RCode.String(),
		"answers": len(msg.Answers),
		"cached":  len(cacheable),
		"elapsed": r.clock.Now().Sub(tx.ForwardedAt).String(),
	}, "Relaying upstream reply")
	return domain.Datagram{Data: data, Addr: tx.Client}, true
}

func (r *Resolver) expire(now time.Time) []domain.Datagram {
	expired := r.pending.Expire(now)
	if len(expired) == 0 {
		return nil
	}
	var out []domain.Datagram
	for _, tx := range expired {
		r.logger.Warn(map[string]any{
			"id":       tx.ID,
			"client":   tx.Client.String(),
			"upstream": tx.Upstream.String(),
		}, "Forwarded query timed out")
		if d, ok := r.servfail(tx); ok {
			out = append(out, d)
		}
	}
	return out
}

// servfail builds the SERVFAIL owed to the client of an abandoned forwarded
// query, when ServfailOnTimeout is set.
func (r *Resolver) servfail(tx domain.Transaction) (domain.Datagram, bool) {
	if !r.servfailOnTimeout {
		return domain.Datagram{}, false
	}
	payload, err := r.codec.Encode(domain.NewErrorResponse(tx.Query, domain.SERVFAIL))
	if err != nil {
		r.logger.Error(map[string]any{
			"id":    tx.ID,
			"error": err.Error(),
		}, "Failed to encode SERVFAIL response")
		return domain.Datagram{}, false
	}
	return domain.Datagram{Data: payload, Addr: tx.Client}, true
}

var _ PacketHandler = (*Resolver)(nil)

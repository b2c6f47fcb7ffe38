// Package pending holds the queries forwarded upstream until their reply
// arrives or their deadline passes.
package pending

import (
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/haukened/rr-relay/internal/dns/common/log"
	"github.com/haukened/rr-relay/internal/dns/domain"
	"github.com/haukened/rr-relay/internal/dns/services/resolver"
)

// Table maps transaction ids to forwarded queries. At most one transaction is
// kept per id; a later registration replaces the earlier one. When the table
// is full the least recently registered transaction is dropped.
type Table struct {
	mu       sync.Mutex
	lru      *lru.Cache[uint16, domain.Transaction]
	capacity int
	logger   log.Logger
}

// New returns a Table holding up to capacity transactions.
func New(capacity int, logger log.Logger) (*Table, error) {
	cache, err := lru.New[uint16, domain.Transaction](capacity)
	if err != nil {
		return nil, err
	}
	return &Table{lru: cache, capacity: capacity, logger: logger}, nil
}

// Register stores tx under its id and returns the transaction it displaced,
// if any: the earlier one under the same id, or else the oldest one when the
// table was full. At most one transaction is displaced.
func (t *Table) Register(tx domain.Transaction) (domain.Transaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, displaced := t.lru.Peek(tx.ID)
	if displaced {
		t.lru.Remove(tx.ID)
	} else if t.lru.Len() >= t.capacity {
		_, old, displaced = t.lru.RemoveOldest()
	}
	t.lru.Add(tx.ID, tx)
	return old, displaced
}

// Take removes and returns the transaction for id, provided from is the
// upstream it was forwarded to. A nil from skips the source check.
func (t *Table) Take(id uint16, from net.Addr) (domain.Transaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, ok := t.lru.Peek(id)
	if !ok {
		return domain.Transaction{}, false
	}
	if from != nil && !tx.FromUpstream(from) {
		t.logger.Debug(map[string]any{
			"id":       id,
			"from":     from.String(),
			"upstream": addrString(tx.Upstream),
		}, "Reply id matches a pending query from another upstream")
		return domain.Transaction{}, false
	}
	t.lru.Remove(id)
	return tx, true
}

// Expire removes and returns every transaction whose deadline is before now,
// oldest first.
func (t *Table) Expire(now time.Time) []domain.Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []domain.Transaction
	for _, id := range t.lru.Keys() {
		tx, ok := t.lru.Peek(id)
		if !ok || !tx.Expired(now) {
			continue
		}
		t.lru.Remove(id)
		expired = append(expired, tx)
	}
	return expired
}

// Len returns the number of pending transactions.
func (t *Table) Len() int {
	return t.lru.Len()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

var _ resolver.PendingTable = (*Table)(nil)

package dnscache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/haukened/rr-relay/internal/dns/common/clock"
	"github.com/haukened/rr-relay/internal/dns/domain"
	"github.com/haukened/rr-relay/internal/dns/services/resolver"
)

// Entry is a cached record and the instant it was inserted.
type Entry struct {
	Record     domain.Record
	InsertedAt time.Time
}

// Expired reports whether more than the record TTL has elapsed since insertion.
// Exactly TTL elapsed is still live.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.InsertedAt) > e.Record.Lifetime()
}

// Remaining returns the whole seconds of lifetime left at now, never negative.
func (e Entry) Remaining(now time.Time) int32 {
	left := e.Record.Lifetime() - now.Sub(e.InsertedAt)
	if left <= 0 {
		return 0
	}
	return int32(left / time.Second)
}

// dnsCache is an in-memory TTL-aware record cache on an LRU backing store.
// Each key (name, type, class) holds every entry inserted under it, in
// insertion order. Keys beyond the capacity are evicted least recently used
// first.
type dnsCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, []Entry]
	clock clock.Clock
}

// New returns a new dnsCache holding up to size keys.
func New(size int, clk clock.Clock) (*dnsCache, error) {
	cache, err := lru.New[string, []Entry](size)
	if err != nil {
		return nil, err
	}
	return &dnsCache{lru: cache, clock: clk}, nil
}

// Insert appends a copy of rr stamped with the current time.
func (c *dnsCache) Insert(rr domain.Record) {
	c.InsertAll([]domain.Record{rr})
}

// InsertAll appends every record, stamped with a single insertion time.
func (c *dnsCache) InsertAll(records []domain.Record) {
	if len(records) == 0 {
		return
	}
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rr := range records {
		c.appendLocked(Entry{Record: rr, InsertedAt: now})
	}
}

func (c *dnsCache) appendLocked(e Entry) {
	key := e.Record.Key()
	existing, _ := c.lru.Peek(key)
	entries := make([]Entry, len(existing), len(existing)+1)
	copy(entries, existing)
	c.lru.Add(key, append(entries, e))
}

// Sweep removes every expired entry and returns the number removed.
// Recency order is left as it was.
func (c *dnsCache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	type bucket struct {
		key     string
		entries []Entry
	}
	keys := c.lru.Keys()
	survivors := make([]bucket, 0, len(keys))
	removed, trimmed := 0, false
	for _, key := range keys {
		entries, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		live := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if !e.Expired(now) {
				live = append(live, e)
			}
		}
		if len(live) == 0 {
			removed += len(entries)
			c.lru.Remove(key)
			continue
		}
		if len(live) < len(entries) {
			removed += len(entries) - len(live)
			trimmed = true
		}
		survivors = append(survivors, bucket{key: key, entries: live})
	}
	// Add promotes, so every survivor is written back oldest first.
	if trimmed {
		for _, b := range survivors {
			c.lru.Add(b.key, b.entries)
		}
	}
	return removed
}

// Lookup returns every live record matching name, type and class exactly,
// with TTL rewritten to the remaining lifetime. An empty result is not an
// error.
func (c *dnsCache) Lookup(name string, t domain.RRType, class domain.RRClass) []domain.Record {
	now := c.clock.Now()
	c.mu.Lock()
	entries, ok := c.lru.Get(domain.GenerateKey(name, t, class))
	c.mu.Unlock()
	if !ok {
		return nil
	}
	var out []domain.Record
	for _, e := range entries {
		if e.Expired(now) {
			continue
		}
		rr := e.Record
		rr.TTL = e.Remaining(now)
		out = append(out, rr)
	}
	return out
}

// Len returns the number of entries held across all keys.
func (c *dnsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, key := range c.lru.Keys() {
		entries, _ := c.lru.Peek(key)
		n += len(entries)
	}
	return n
}

// Entries returns a copy of every entry, keys oldest first.
func (c *dnsCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entry
	for _, key := range c.lru.Keys() {
		entries, _ := c.lru.Peek(key)
		out = append(out, entries...)
	}
	return out
}

// Restore appends previously saved entries, keeping their insertion time.
// Entries already expired are skipped. It returns the number restored.
func (c *dnsCache) Restore(entries []Entry) int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range entries {
		if e.Expired(now) {
			continue
		}
		c.appendLocked(e)
		n++
	}
	return n
}

var _ resolver.Cache = (*dnsCache)(nil)

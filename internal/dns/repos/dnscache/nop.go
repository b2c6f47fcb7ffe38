package dnscache

import (
	"github.com/haukened/rr-relay/internal/dns/domain"
	"github.com/haukened/rr-relay/internal/dns/services/resolver"
)

// nopCache remembers nothing. It stands in for the cache when caching is
// disabled.
type nopCache struct{}

// NewNop returns a cache that drops every insert.
func NewNop() *nopCache {
	return &nopCache{}
}

func (nopCache) Sweep() int { return 0 }

func (nopCache) Lookup(string, domain.RRType, domain.RRClass) []domain.Record { return nil }

func (nopCache) InsertAll([]domain.Record) {}

func (nopCache) Entries() []Entry { return nil }

func (nopCache) Restore([]Entry) int { return 0 }

var _ resolver.Cache = (*nopCache)(nil)

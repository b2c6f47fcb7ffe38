// Package zonestore serves the authoritative records loaded from the zone
// file. Records are grouped by registrable domain, and a bloom filter over
// the lookup keys turns most misses away before any map is touched.
package zonestore

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-relay/internal/dns/common/utils"
	"github.com/haukened/rr-relay/internal/dns/domain"
	"github.com/haukened/rr-relay/internal/dns/services/resolver"
)

// falsePositiveRate of the key filter.
const falsePositiveRate = 0.01

// ZoneStore is an in-memory implementation of resolver.ZoneStore.
// It provides fast access to authoritative DNS records with concurrent safety.
type ZoneStore struct {
	mu sync.RWMutex
	// apex to record key to records, in zone file order
	zones  map[string]map[string][]domain.Record
	filter *bloom.BloomFilter
}

// New creates an empty ZoneStore.
func New() *ZoneStore {
	return &ZoneStore{
		zones:  make(map[string]map[string][]domain.Record),
		filter: bloom.NewWithEstimates(1, falsePositiveRate),
	}
}

// Load replaces the whole record set.
func (zs *ZoneStore) Load(records []domain.Record) {
	zones := make(map[string]map[string][]domain.Record)
	filter := bloom.NewWithEstimates(uint(max(len(records), 1)), falsePositiveRate)
	for _, rr := range records {
		apex := utils.GetApexDomain(rr.Name)
		zone, ok := zones[apex]
		if !ok {
			zone = make(map[string][]domain.Record)
			zones[apex] = zone
		}
		key := rr.Key()
		zone[key] = append(zone[key], rr)
		filter.AddString(key)
	}

	zs.mu.Lock()
	zs.zones = zones
	zs.filter = filter
	zs.mu.Unlock()
}

// FindRecords returns copies of the records whose name, type and class equal
// the question's exactly.
func (zs *ZoneStore) FindRecords(q domain.Question) ([]domain.Record, bool) {
	key := q.Key()

	zs.mu.RLock()
	defer zs.mu.RUnlock()

	if !zs.filter.TestString(key) {
		return nil, false
	}
	records, ok := zs.zones[utils.GetApexDomain(q.Name)][key]
	if !ok {
		return nil, false
	}
	out := make([]domain.Record, len(records))
	copy(out, records)
	return out, true
}

// Zones returns the registrable domains that hold at least one record.
func (zs *ZoneStore) Zones() []string {
	zs.mu.RLock()
	defer zs.mu.RUnlock()

	zones := make([]string, 0, len(zs.zones))
	for apex := range zs.zones {
		zones = append(zones, apex)
	}
	return zones
}

// Count returns the total number of records across all zones.
func (zs *ZoneStore) Count() int {
	zs.mu.RLock()
	defer zs.mu.RUnlock()

	count := 0
	for _, zone := range zs.zones {
		for _, records := range zone {
			count += len(records)
		}
	}
	return count
}

// Ensure ZoneStore implements resolver.ZoneStore at compile time
var _ resolver.ZoneStore = (*ZoneStore)(nil)

package dnscache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-relay/internal/dns/common/clock"
	"github.com/haukened/rr-relay/internal/dns/domain"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T, size int) (*dnsCache, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(epoch)
	c, err := New(size, clk)
	require.NoError(t, err)
	return c, clk
}

func aRecord(name string, ttl int32, ip string) domain.Record {
	return domain.NewRecord(name, ttl, domain.RRClassIN, domain.RRTypeA, ip)
}

func TestInvalidCacheSize(t *testing.T) {
	_, err := New(-1, clock.RealClock{})
	assert.Error(t, err)
	_, err = New(0, clock.RealClock{})
	assert.Error(t, err)
}

func TestSweep_RemovesExpired(t *testing.T) {
	c, clk := newTestCache(t, 16)
	c.Insert(aRecord("x.test", 1, "10.0.0.1"))

	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1, c.Sweep())
	assert.Empty(t, c.Lookup("x.test", domain.RRTypeA, domain.RRClassIN))
	assert.Equal(t, 0, c.Len())
}

func TestSweep_KeepsLive(t *testing.T) {
	c, clk := newTestCache(t, 16)
	c.Insert(aRecord("x.test", 100, "10.0.0.1"))

	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, 0, c.Sweep())
	assert.Len(t, c.Lookup("x.test", domain.RRTypeA, domain.RRClassIN), 1)
}

func TestSweep_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		ttl     int32
		elapsed time.Duration
		expired bool
	}{
		{"exactly ttl is live", 1, time.Second, false},
		{"just past ttl", 1, time.Second + time.Millisecond, true},
		{"zero ttl survives the same instant", 0, 0, false},
		{"zero ttl gone a moment later", 0, time.Nanosecond, true},
		{"negative ttl treated as zero", -30, time.Nanosecond, true},
		{"negative ttl same instant", -30, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clk := newTestCache(t, 4)
			c.Insert(aRecord("b.test", tt.ttl, "10.0.0.2"))
			clk.Advance(tt.elapsed)
			removed := c.Sweep()
			if tt.expired {
				assert.Equal(t, 1, removed)
			} else {
				assert.Equal(t, 0, removed)
			}
		})
	}
}

func TestSweep_MixedKey(t *testing.T) {
	c, clk := newTestCache(t, 4)
	c.Insert(aRecord("m.test", 1, "10.0.0.1"))
	clk.Advance(500 * time.Millisecond)
	c.Insert(aRecord("m.test", 60, "10.0.0.2"))
	clk.Advance(time.Second)

	assert.Equal(t, 1, c.Sweep())
	got := c.Lookup("m.test", domain.RRTypeA, domain.RRClassIN)
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.2", got[0].Data)
}

func TestLookup_Selectivity(t *testing.T) {
	c, _ := newTestCache(t, 16)
	c.InsertAll([]domain.Record{
		aRecord("a.test", 60, "10.0.0.1"),
		aRecord("b.test", 60, "10.0.0.2"),
		domain.NewRecord("a.test", 60, domain.RRClassIN, domain.RRTypeAAAA, "2001:db8::1"),
		domain.NewRecord("a.test", 60, domain.RRClass(3), domain.RRTypeA, "10.0.0.3"),
	})

	got := c.Lookup("a.test", domain.RRTypeA, domain.RRClassIN)
	require.Len(t, got, 1)
	assert.Equal(t, aRecord("a.test", 60, "10.0.0.1"), got[0])

	assert.Empty(t, c.Lookup("A.TEST", domain.RRTypeA, domain.RRClassIN), "names are case sensitive")
	assert.Empty(t, c.Lookup("c.test", domain.RRTypeA, domain.RRClassIN))
	assert.Len(t, c.Lookup("a.test", domain.RRTypeAAAA, domain.RRClassIN), 1)
	assert.Len(t, c.Lookup("a.test", domain.RRTypeA, domain.RRClass(3)), 1)
}

func TestLookup_RemainingTTL(t *testing.T) {
	c, clk := newTestCache(t, 4)
	c.Insert(aRecord("r.test", 300, "10.0.0.1"))

	clk.Advance(100*time.Second + 400*time.Millisecond)
	got := c.Lookup("r.test", domain.RRTypeA, domain.RRClassIN)
	require.Len(t, got, 1)
	assert.Equal(t, int32(199), got[0].TTL)
}

func TestSweep_KeepsRecencyOrder(t *testing.T) {
	c, clk := newTestCache(t, 2)
	c.Insert(aRecord("a.test", 1, "10.0.0.1"))
	c.Insert(aRecord("a.test", 60, "10.0.0.2"))
	c.Insert(aRecord("b.test", 60, "10.0.0.3"))

	clk.Advance(2 * time.Second)
	assert.Equal(t, 1, c.Sweep())
	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a.test", entries[0].Record.Name)

	c.Insert(aRecord("c.test", 60, "10.0.0.4"))
	assert.Empty(t, c.Lookup("a.test", domain.RRTypeA, domain.RRClassIN))
	assert.Len(t, c.Lookup("b.test", domain.RRTypeA, domain.RRClassIN), 1)
}

func TestLookup_SkipsExpiredBeforeSweep(t *testing.T) {
	c, clk := newTestCache(t, 4)
	c.Insert(aRecord("s.test", 1, "10.0.0.1"))
	clk.Advance(2 * time.Second)
	assert.Empty(t, c.Lookup("s.test", domain.RRTypeA, domain.RRClassIN))
}

func TestInsert_DuplicatesAppended(t *testing.T) {
	c, _ := newTestCache(t, 4)
	rr := aRecord("d.test", 60, "10.0.0.1")
	c.Insert(rr)
	c.Insert(rr)

	assert.Len(t, c.Lookup("d.test", domain.RRTypeA, domain.RRClassIN), 2)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.lru.Len())
}

func TestInsert_CopiesRecord(t *testing.T) {
	c, _ := newTestCache(t, 4)
	records := []domain.Record{aRecord("v.test", 60, "10.0.0.1")}
	c.InsertAll(records)
	records[0].Data = "10.9.9.9"

	got := c.Lookup("v.test", domain.RRTypeA, domain.RRClassIN)
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.1", got[0].Data)
}

func TestCapacity_EvictsLeastRecentlyUsedKey(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Insert(aRecord("one.test", 60, "10.0.0.1"))
	c.Insert(aRecord("two.test", 60, "10.0.0.2"))
	c.Lookup("one.test", domain.RRTypeA, domain.RRClassIN)
	c.Insert(aRecord("three.test", 60, "10.0.0.3"))

	assert.NotEmpty(t, c.Lookup("one.test", domain.RRTypeA, domain.RRClassIN))
	assert.Empty(t, c.Lookup("two.test", domain.RRTypeA, domain.RRClassIN))
	assert.NotEmpty(t, c.Lookup("three.test", domain.RRTypeA, domain.RRClassIN))
}

func TestEntriesAndRestore(t *testing.T) {
	c, clk := newTestCache(t, 8)
	c.Insert(aRecord("short.test", 5, "10.0.0.1"))
	c.Insert(aRecord("long.test", 600, "10.0.0.2"))
	saved := c.Entries()
	require.Len(t, saved, 2)
	assert.Equal(t, epoch, saved[0].InsertedAt)

	restored, clk2 := newTestCache(t, 8)
	clk2.Set(clk.Now().Add(10 * time.Second))
	assert.Equal(t, 1, restored.Restore(saved))

	got := restored.Lookup("long.test", domain.RRTypeA, domain.RRClassIN)
	require.Len(t, got, 1)
	assert.Equal(t, int32(590), got[0].TTL)
	assert.Empty(t, restored.Lookup("short.test", domain.RRTypeA, domain.RRClassIN))
}

func TestConcurrentAccess(t *testing.T) {
	c, clk := newTestCache(t, 64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				name := fmt.Sprintf("h%d.test", j%10)
				c.Insert(aRecord(name, int32(j%3), "10.0.0.1"))
				c.Lookup(name, domain.RRTypeA, domain.RRClassIN)
				if j%10 == 0 {
					clk.Advance(time.Second)
					c.Sweep()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.GreaterOrEqual(t, c.Len(), 0)
}

func TestNopCache(t *testing.T) {
	c := NewNop()
	c.InsertAll([]domain.Record{aRecord("n.test", 60, "10.0.0.1")})
	assert.Empty(t, c.Lookup("n.test", domain.RRTypeA, domain.RRClassIN))
	assert.Equal(t, 0, c.Sweep())
	assert.Empty(t, c.Entries())
	assert.Equal(t, 0, c.Restore([]Entry{{Record: aRecord("n.test", 60, "10.0.0.1")}}))
}

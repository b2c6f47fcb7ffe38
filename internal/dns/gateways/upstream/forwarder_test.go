package upstream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewForwarder_Errors(t *testing.T) {
	_, err := NewForwarder(nil)
	assert.EqualError(t, err, errNoServersProvided)

	_, err = NewForwarder([]string{"127.0.0.53:53", "not an address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an address")
}

func TestForwarder_SingleServer(t *testing.T) {
	f, err := NewForwarder([]string{"127.0.0.53:53"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "127.0.0.53:53", f.Next().String())
	}
}

func TestForwarder_RoundRobin(t *testing.T) {
	f, err := NewForwarder([]string{"192.0.2.1:53", "192.0.2.2:5353", "[2001:db8::1]:53"})
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1:53", "192.0.2.2:5353", "[2001:db8::1]:53"}, f.Servers())

	var got []string
	for i := 0; i < 6; i++ {
		got = append(got, f.Next().String())
	}
	assert.Equal(t, []string{
		"192.0.2.1:53", "192.0.2.2:5353", "[2001:db8::1]:53",
		"192.0.2.1:53", "192.0.2.2:5353", "[2001:db8::1]:53",
	}, got)
}

func TestForwarder_ConcurrentNext(t *testing.T) {
	f, err := NewForwarder([]string{"192.0.2.1:53", "192.0.2.2:53"})
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[string]int{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := f.Next().String()
				mu.Lock()
				counts[s]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, counts["192.0.2.1:53"])
	assert.Equal(t, 500, counts["192.0.2.2:53"])
}

// ABOUTME: Tests for the idempotency key cache
// ABOUTME: Covers claiming, release, expiry, size-bounded eviction, sweeping and concurrency

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration, size int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl, size)
	c.mu.Lock()
	c.now = clock.now
	c.mu.Unlock()
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_ClaimOnce(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.True(t, c.Claim("user-1:key-a"))
	assert.False(t, c.Claim("user-1:key-a"), "replay is rejected")
	assert.True(t, c.Claim("user-2:key-a"), "keys are independent")
	assert.True(t, c.Seen("user-1:key-a"))
	assert.False(t, c.Seen("never"))
}

func TestCache_ReleaseAllowsRetry(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.True(t, c.Claim("k"))
	c.Release("k")
	assert.False(t, c.Seen("k"))
	assert.True(t, c.Claim("k"))

	c.Release("unknown") // no-op
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	assert.True(t, c.Claim("k"))
	clock.advance(59 * time.Second)
	assert.False(t, c.Claim("k"))

	clock.advance(2 * time.Second)
	assert.False(t, c.Seen("k"))
	assert.True(t, c.Claim("k"), "expired key can be claimed again")
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 3)

	for _, k := range []string{"a", "b", "c", "d"} {
		assert.True(t, c.Claim(k))
	}
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen("a"), "oldest evicted")
	assert.True(t, c.Seen("b"))
	assert.True(t, c.Seen("d"))
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.Claim("old-1")
	c.Claim("old-2")
	clock.advance(30 * time.Second)
	c.Claim("fresh")
	clock.advance(31 * time.Second)

	c.sweep()
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Seen("fresh"))
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Second, sweepInterval(100*time.Millisecond))
	assert.Equal(t, 30*time.Second, sweepInterval(time.Minute))
	assert.Equal(t, time.Minute, sweepInterval(time.Hour))
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestCache_ConcurrentClaimsSingleWinner(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 100)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Claim("same-key") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestCache_ConcurrentMixedKeys(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 20)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				k := fmt.Sprintf("k-%d-%d", i, j)
				c.Claim(k)
				c.Seen(k)
				if j%3 == 0 {
					c.Release(k)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 20)
}

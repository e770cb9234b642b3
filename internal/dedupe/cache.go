// ABOUTME: Bounded TTL set of idempotency keys for rejecting replayed requests
// ABOUTME: Keys are claimed atomically and may be released when the request fails

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// claim is one remembered key.
type claim struct {
	key     string
	expires time.Time
}

// Cache remembers recently claimed keys for a fixed TTL. When full, the
// oldest claim is evicted. Claims are kept in a list ordered by expiry, which
// is also claim order because every claim gets the same TTL.
type Cache struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	byAge   *list.List // of *claim, oldest first
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache holding at most maxSize keys, each for ttl. A
// background sweeper drops expired keys until Close is called.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache{
		keys:    make(map[string]*list.Element),
		byAge:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval(ttl))
	return c
}

// sweepInterval runs the sweeper twice per TTL, within [1s, 1m].
func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/2, time.Second), time.Minute)
}

// Claim records key and reports whether it was free. A false result means
// the key was claimed within the last TTL and the request is a replay.
func (c *Cache) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.keys[key]; ok {
		if now.Before(el.Value.(*claim).expires) {
			return false
		}
		c.removeLocked(el)
	}

	for len(c.keys) >= c.maxSize {
		c.removeLocked(c.byAge.Front())
	}
	c.keys[key] = c.byAge.PushBack(&claim{key: key, expires: now.Add(c.ttl)})
	return true
}

// Release forgets key so the same request may be retried.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.keys[key]; ok {
		c.removeLocked(el)
	}
}

// Seen reports whether key is currently claimed.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.keys[key]
	return ok && c.now().Before(el.Value.(*claim).expires)
}

// Len returns the number of remembered keys, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func (c *Cache) removeLocked(el *list.Element) {
	c.byAge.Remove(el)
	delete(c.keys, el.Value.(*claim).key)
}

// sweep drops expired claims from the front of the list.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.byAge.Front(); el != nil; el = c.byAge.Front() {
		if now.Before(el.Value.(*claim).expires) {
			return
		}
		c.removeLocked(el)
	}
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

// Close stops the sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

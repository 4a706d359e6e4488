// Package cache keeps rendered reports and lead-sighting counters close to
// the API. The in-process LRU serves the Community tier and acts as L1 in
// front of Redis for the Pro tier.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/domain"
)

// DefaultLocalSize bounds the LRU when no size is configured.
const DefaultLocalSize = 10000

// LRUStats is a point-in-time view of an LRUCache.
type LRUStats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Counters  int   `json:"counters"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// LRUCache holds tenant-scoped byte values in recency order. Values expire
// after their TTL; a non-positive TTL keeps a value until it is evicted.
// Counters live beside the values and never count towards capacity.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	recency  *list.List // front is most recently used
	windows  map[string]*window
	clock    clock.Clock

	hits, misses, evictions int64
}

type entry struct {
	key     string
	value   []byte
	expires time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// window is a counter that resets once its deadline passes.
type window struct {
	count  int64
	closes time.Time
}

// NewLRUCache creates an LRU holding at most capacity values.
// Expiry is judged against clk; nil uses the wall clock.
func NewLRUCache(capacity int, clk clock.Clock) *LRUCache {
	if capacity <= 0 {
		capacity = DefaultLocalSize
	}
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		recency:  list.New(),
		windows:  make(map[string]*window),
		clock:    clock.OrReal(clk),
	}
}

// Get returns the live value for key, or nil on a miss.
func (c *LRUCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	scoped, err := scope(tenantID, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem := c.live(scoped, c.clock.Now())
	if elem == nil {
		c.misses++
		return nil, nil
	}
	c.hits++
	c.recency.MoveToFront(elem)
	return elem.Value.(*entry).value, nil
}

// Set stores value under key. When the cache is full, expired values are
// reclaimed before the least recently used one is evicted.
func (c *LRUCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	scoped, err := scope(tenantID, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}

	if elem, ok := c.entries[scoped]; ok {
		e := elem.Value.(*entry)
		e.value, e.expires = value, expires
		c.recency.MoveToFront(elem)
		return nil
	}

	if c.recency.Len() >= c.capacity {
		c.reclaim(now)
	}
	for c.recency.Len() >= c.capacity {
		c.drop(c.recency.Back())
		c.evictions++
	}

	c.entries[scoped] = c.recency.PushFront(&entry{key: scoped, value: value, expires: expires})
	return nil
}

// Delete removes key if present.
func (c *LRUCache) Delete(ctx context.Context, tenantID string, key string) error {
	scoped, err := scope(tenantID, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[scoped]; ok {
		c.drop(elem)
	}
	return nil
}

// GetReport retrieves a cached report.
func (c *LRUCache) GetReport(ctx context.Context, tenantID string, reportID string) (*domain.ComprehensiveReport, error) {
	return getReport(ctx, c, tenantID, reportID)
}

// SetReport caches a report.
func (c *LRUCache) SetReport(ctx context.Context, tenantID string, report *domain.ComprehensiveReport, ttl time.Duration) error {
	return setReport(ctx, c, tenantID, report, ttl)
}

// IncrementCounter counts a sighting in the window for key and returns the
// count including it. The first sighting after a window closes starts a
// new window at 1.
func (c *LRUCache) IncrementCounter(ctx context.Context, tenantID string, key string, span time.Duration) (int64, error) {
	scoped, err := scope(tenantID, "counter:"+key)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	w, ok := c.windows[scoped]
	if ok && !now.After(w.closes) {
		w.count++
		return w.count, nil
	}

	if !ok && len(c.windows) >= c.capacity {
		c.sweepWindows(now)
	}
	c.windows[scoped] = &window{count: 1, closes: now.Add(span)}
	return 1, nil
}

// Ping always succeeds for the in-process cache.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops every value and counter.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.recency.Init()
	c.windows = make(map[string]*window)
	return nil
}

// Stats reports occupancy and hit rates.
func (c *LRUCache) Stats() LRUStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return LRUStats{
		Entries:   c.recency.Len(),
		Capacity:  c.capacity,
		Counters:  len(c.windows),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// live returns the element for scoped unless it is absent or expired.
// Expired elements are dropped on sight. Caller holds mu.
func (c *LRUCache) live(scoped string, now time.Time) *list.Element {
	elem, ok := c.entries[scoped]
	if !ok {
		return nil
	}
	if elem.Value.(*entry).expired(now) {
		c.drop(elem)
		return nil
	}
	return elem
}

// reclaim drops every expired value. Caller holds mu.
func (c *LRUCache) reclaim(now time.Time) {
	for elem := c.recency.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry).expired(now) {
			c.drop(elem)
		}
		elem = prev
	}
}

// sweepWindows drops counter windows that have closed. Caller holds mu.
func (c *LRUCache) sweepWindows(now time.Time) {
	for key, w := range c.windows {
		if now.After(w.closes) {
			delete(c.windows, key)
		}
	}
}

func (c *LRUCache) drop(elem *list.Element) {
	if elem == nil {
		return
	}
	c.recency.Remove(elem)
	delete(c.entries, elem.Value.(*entry).key)
}

func scope(tenantID, key string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("tenantID is required")
	}
	return tenantID + ":" + key, nil
}

var _ domain.Cache = (*LRUCache)(nil)

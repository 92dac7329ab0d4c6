// Package cache holds time-boxed snapshots of task query results.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/amonks/taskmirror/task"
)

const (
	// DefaultTTL is how long a snapshot stays fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultJanitorInterval is how often Run evicts expired entries.
	DefaultJanitorInterval = time.Minute
)

// Key identifies one query's snapshot.
type Key struct {
	UserID    string
	Signature string
}

func (k Key) String() string {
	if k.Signature == "" {
		return k.UserID
	}
	return k.UserID + "|" + k.Signature
}

// Options configures a Cache.
type Options struct {
	// TTL defaults to DefaultTTL.
	TTL time.Duration

	// Clock defaults to the wall clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Cache maps keys to the latest full snapshot for that key.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]entry
	ttl     time.Duration
	clock   clock.Clock
	logger  *slog.Logger
}

type entry struct {
	tasks    []task.Task
	storedAt time.Time
}

// New creates an empty cache.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		entries: make(map[Key]entry),
		ttl:     opts.TTL,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the snapshot for key if it is younger than the TTL. An expired
// entry is evicted.
//
// The returned slice is shared; callers must not modify it.
func (c *Cache) Get(key Key) ([]task.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.freshLocked(e) {
		delete(c.entries, key)
		return nil, false
	}
	return e.tasks, true
}

// Put replaces the snapshot for key and resets its age. Order is kept as
// given.
func (c *Cache) Put(key Key, tasks []task.Task) {
	stored := make([]task.Task, len(tasks))
	copy(stored, tasks)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{tasks: stored, storedAt: c.clock.Now()}
}

// Delete removes the entry for key, if any.
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeleteUser removes every entry belonging to userID.
func (c *Cache) DeleteUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if key.UserID == userID {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// EvictExpired removes every entry older than the TTL and returns how many
// were removed.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !c.freshLocked(e) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run evicts expired entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.EvictExpired(); removed > 0 {
				c.logger.Debug("evicted expired cache entries", "count", removed)
			}
		}
	}
}

func (c *Cache) freshLocked(e entry) bool {
	return c.clock.Since(e.storedAt) < c.ttl
}

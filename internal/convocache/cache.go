// Package convocache provides a short-lived, per-conversation store of recent
// tool results. The agent uses it to ground follow-up tool calls (notably
// appointment creation) in previously offered availability without re-querying.
package convocache

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an entry stays readable after its write.
	DefaultTTL = 5 * time.Minute

	// DefaultCapacity bounds each conversation bucket. Writing past the
	// capacity evicts the oldest entry (FIFO, not LRU).
	DefaultCapacity = 10

	// AvailabilityToolName is the tool whose results feed SchedulingSnapshot.
	AvailabilityToolName = "get_available_slots"
)

// Entry is one recorded tool result for a conversation.
type Entry struct {
	ToolName  string
	Args      json.RawMessage
	Result    any
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Options configures the cache.
type Options struct {
	TTL      time.Duration
	Capacity int
}

// Cache is a process-local, TTL-bounded store of recent tool results keyed by
// conversation. Buckets are partitioned by conversation id, so distinct
// conversations never contend beyond the map lock. Expired entries are pruned
// lazily on the next read or write for that conversation; there is no
// background sweep.
type Cache struct {
	mu       sync.Mutex
	buckets  map[string][]Entry
	ttl      time.Duration
	capacity int
}

// New creates a cache with the given options. Zero values fall back to defaults.
func New(opts Options) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		buckets:  make(map[string][]Entry),
		ttl:      ttl,
		capacity: capacity,
	}
}

// Store records a tool result for the conversation.
func (c *Cache) Store(conversationID, toolName string, args json.RawMessage, result any) {
	c.StoreAt(conversationID, toolName, args, result, time.Now())
}

// StoreAt records a tool result with an explicit timestamp (for testing).
func (c *Cache) StoreAt(conversationID, toolName string, args json.RawMessage, result any, now time.Time) {
	if conversationID == "" || toolName == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.pruneLocked(conversationID, now)
	bucket = append(bucket, Entry{
		ToolName:  toolName,
		Args:      args,
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	})
	for len(bucket) > c.capacity {
		bucket = bucket[1:]
	}
	c.buckets[conversationID] = bucket
}

// Recent returns up to limit unexpired entries for the tool, newest first.
func (c *Cache) Recent(conversationID, toolName string, limit int) []Entry {
	return c.RecentAt(conversationID, toolName, limit, time.Now())
}

// RecentAt is Recent with an explicit timestamp (for testing).
func (c *Cache) RecentAt(conversationID, toolName string, limit int, now time.Time) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.pruneLocked(conversationID, now)
	if len(bucket) == 0 {
		c.storeOrDeleteLocked(conversationID, bucket)
		return nil
	}
	c.buckets[conversationID] = bucket

	var out []Entry
	for i := len(bucket) - 1; i >= 0; i-- {
		if toolName != "" && bucket[i].ToolName != toolName {
			continue
		}
		out = append(out, bucket[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// PruneExpired removes expired entries for the conversation and deletes the
// bucket entirely once empty. This is the cache's only reclamation path.
func (c *Cache) PruneExpired(conversationID string) {
	c.PruneExpiredAt(conversationID, time.Now())
}

// PruneExpiredAt is PruneExpired with an explicit timestamp (for testing).
func (c *Cache) PruneExpiredAt(conversationID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeOrDeleteLocked(conversationID, c.pruneLocked(conversationID, now))
}

// Size returns the number of entries currently held for the conversation,
// including any not yet pruned.
func (c *Cache) Size(conversationID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets[conversationID])
}

// pruneLocked returns the conversation's bucket with expired entries dropped.
// Callers must hold c.mu and are responsible for writing the result back.
func (c *Cache) pruneLocked(conversationID string, now time.Time) []Entry {
	bucket := c.buckets[conversationID]
	kept := bucket[:0]
	for _, e := range bucket {
		if e.ExpiresAt.After(now) {
			kept = append(kept, e)
		}
	}
	return kept
}

func (c *Cache) storeOrDeleteLocked(conversationID string, bucket []Entry) {
	if len(bucket) == 0 {
		delete(c.buckets, conversationID)
		return
	}
	c.buckets[conversationID] = bucket
}

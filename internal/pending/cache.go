// Package pending holds transactions that were persisted as PENDING and are
// waiting for the submitter to attach a proof or decline.
//
// The cache is process-local. Removal is the only way an entry reaches the
// finalizer, so an entry is finalized at most once.
package pending

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

// Entry is the in-memory side of a PENDING transaction.
type Entry struct {
	TransactionID int64
	SubmitterID   string
	TargetOwnerID string
	Kind          ledger.Kind
	LineItems     ledger.LineItems
	ChannelID     string
	// PromptRef is the message carrying the proof controls, once sent.
	PromptRef     string
	CreatedAt     time.Time
}

type slot struct {
	entry Entry
	timer *time.Timer
}

// Cache maps transaction ids to pending entries. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[int64]*slot
	ttl      time.Duration
	onExpire func(Entry)
	logger   *zap.Logger
	closed   bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithExpiryHook runs fn (on the timer goroutine) for every entry dropped by the TTL.
func WithExpiryHook(fn func(Entry)) Option {
	return func(c *Cache) { c.onExpire = fn }
}

// New creates a cache. A ttl of zero keeps entries until they are taken.
func New(ttl time.Duration, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		entries: make(map[int64]*slot),
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "pending")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores e, replacing any entry with the same transaction id.
func (c *Cache) Put(e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if old, ok := c.entries[e.TransactionID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	s := &slot{entry: e}
	if c.ttl > 0 {
		s.timer = time.AfterFunc(c.ttl, func() { c.expire(e.TransactionID, s) })
	}
	c.entries[e.TransactionID] = s
}

func (c *Cache) expire(id int64, s *slot) {
	c.mu.Lock()
	current, ok := c.entries[id]
	if !ok || current != s {
		c.mu.Unlock()
		return
	}
	delete(c.entries, id)
	hook := c.onExpire
	c.mu.Unlock()

	c.logger.Warn("pending proof expired; transaction stays PENDING",
		zap.Int64("transaction_id", id),
		zap.String("submitter_id", s.entry.SubmitterID),
		zap.String("target_owner_id", s.entry.TargetOwnerID))
	if hook != nil {
		hook(s.entry)
	}
}

// Peek returns the entry for id if it belongs to submitter, without removing it.
func (c *Cache) Peek(id int64, submitter string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[id]
	if !ok || s.entry.SubmitterID != submitter {
		return Entry{}, false
	}
	return s.entry, true
}

// SetPromptRef records the prompt message of a pending entry.
func (c *Cache) SetPromptRef(id int64, ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[id]
	if !ok {
		return false
	}
	s.entry.PromptRef = ref
	return true
}

// Take removes and returns the entry for id regardless of submitter.
func (c *Cache) Take(id int64) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	c.removeLocked(id, s)
	return s.entry, true
}

// TakeFor removes and returns the entry for id only if it belongs to submitter.
func (c *Cache) TakeFor(id int64, submitter string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[id]
	if !ok || s.entry.SubmitterID != submitter {
		return Entry{}, false
	}
	c.removeLocked(id, s)
	return s.entry, true
}

// TakeMatching removes and returns the oldest entry submitted by submitter
// for target. Lookup and removal happen under one lock, so two concurrent
// callers never receive the same entry.
func (c *Cache) TakeMatching(submitter, target string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var found *slot
	for _, s := range c.entries {
		if s.entry.SubmitterID != submitter || s.entry.TargetOwnerID != target {
			continue
		}
		if found == nil || s.entry.TransactionID < found.entry.TransactionID {
			found = s
		}
	}
	if found == nil {
		return Entry{}, false
	}
	c.removeLocked(found.entry.TransactionID, found)
	return found.entry, true
}

func (c *Cache) removeLocked(id int64, s *slot) {
	if s.timer != nil {
		s.timer.Stop()
	}
	delete(c.entries, id)
}

// Len returns the number of pending entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns the pending entries ordered by transaction id.
func (c *Cache) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for _, s := range c.entries {
		out = append(out, s.entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out
}

// Close stops every expiry timer and drops all entries. Later Puts are ignored.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, s := range c.entries {
		c.removeLocked(id, s)
	}
	c.closed = true
}

package bot

import (
	"sync"
	"time"

	"github.com/dyluth/stockpanel/internal/notice"
)

// modalCache hands a prepared modal from the authentication message to the
// open-modal control click. One modal per user; entries expire after ttl.
type modalCache struct {
	mu      sync.Mutex
	entries map[string]*cachedModal
	ttl     time.Duration
}

type cachedModal struct {
	modal notice.Modal
	timer *time.Timer
}

func newModalCache(ttl time.Duration) *modalCache {
	return &modalCache{entries: make(map[string]*cachedModal), ttl: ttl}
}

func (c *modalCache) put(userID string, modal notice.Modal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[userID]; ok {
		old.timer.Stop()
	}
	entry := &cachedModal{modal: modal}
	entry.timer = time.AfterFunc(c.ttl, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.entries[userID] == entry {
			delete(c.entries, userID)
		}
	})
	c.entries[userID] = entry
}

// take removes the user's modal if it is the one the control refers to.
func (c *modalCache) take(userID, modalID string) (notice.Modal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok || entry.modal.ID != modalID {
		return notice.Modal{}, false
	}
	entry.timer.Stop()
	delete(c.entries, userID)
	return entry.modal, true
}

func (c *modalCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		entry.timer.Stop()
		delete(c.entries, id)
	}
}

package access

import (
	"sync"
	"time"
)

type (
	// Hint is the last successfully resolved role view of a user, kept as a
	// recovery fallback for when the profile store is slow or unavailable.
	// It is a UX optimization, not a security boundary; privileged operations
	// re-check authorization against the store independently.
	Hint struct {
		Roles        []string
		Capabilities []string
		MadrassahID  string
		ResolvedAt   time.Time
	}

	// HintCache stores role hints keyed by user ID.
	HintCache interface {
		Get(userID string) (Hint, bool)
		Put(userID string, hint Hint)
		Delete(userID string)
	}

	memHintCache struct {
		mutex sync.RWMutex
		hints map[string]Hint
	}
)

var _ HintCache = (*memHintCache)(nil)

func NewMemHintCache() HintCache {
	return &memHintCache{hints: make(map[string]Hint)}
}

func (c *memHintCache) Get(userID string) (Hint, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	hint, ok := c.hints[userID]
	return hint, ok
}

func (c *memHintCache) Put(userID string, hint Hint) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.hints[userID] = hint
}

func (c *memHintCache) Delete(userID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.hints, userID)
}

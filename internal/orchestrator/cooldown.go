package orchestrator

import (
	"sync"
	"time"
)

type cooldownKey struct{ agent, channel, root string }

// CooldownMap tracks each agent's last successful reply per conversational
// thread. The selector consults it; the dispatcher advances it, and only on
// a successful post. A failed post must not suppress a legitimate retry.
type CooldownMap struct {
	mu   sync.Mutex
	last map[cooldownKey]time.Time

	now func() time.Time // test hook
}

// NewCooldownMap creates an empty CooldownMap.
func NewCooldownMap() *CooldownMap {
	return &CooldownMap{last: make(map[cooldownKey]time.Time), now: time.Now}
}

// Active reports whether the agent's last reply in (channel, root) is
// younger than d.
func (c *CooldownMap) Active(agent, channel, root string, d time.Duration) bool {
	if d <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.last[cooldownKey{agent, channel, root}]
	return ok && c.now().Sub(at) < d
}

// Touch records a successful reply now.
func (c *CooldownMap) Touch(agent, channel, root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[cooldownKey{agent, channel, root}] = c.now()
}

// Sweep drops entries older than maxAge and returns how many were removed.
func (c *CooldownMap) Sweep(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, at := range c.last {
		if now.Sub(at) >= maxAge {
			delete(c.last, k)
			n++
		}
	}
	return n
}

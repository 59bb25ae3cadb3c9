package services

import (
	"sync"
	"time"
)

// Cooldown suppresses repeats of the same alert key within a window, so a
// persisting violation does not flood subscribers every tick.
type Cooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{last: make(map[string]time.Time)}
}

// Allow reports whether the key may fire now and records it if so.
func (c *Cooldown) Allow(key string, now time.Time, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.last[key]; ok && now.Sub(ts) < window {
		return false
	}
	c.last[key] = now
	return true
}

// Reset clears all recorded keys.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = make(map[string]time.Time)
}

package alerting

import (
	"sync"
	"time"
)

// Cooldown suppresses repeat alerts inside a configurable window.
type Cooldown struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewCooldown builds a cooldown gate using the wall clock.
func NewCooldown() *Cooldown {
	return &Cooldown{now: time.Now}
}

// Allow reports whether an alert may fire now. A zero or negative window
// disables suppression. The first allowed alert arms the gate.
func (c *Cooldown) Allow(window time.Duration) bool {
	if window <= 0 {
		return true
	}
	now := c.now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.last.IsZero() && now.Sub(c.last) < window {
		return false
	}
	c.last = now
	return true
}

package proctor

import (
	"sync"
	"time"

	"proctoring/internal/violation"
)

// Cooldown gates how often a classified violation may fire. Two independent
// gates must both pass: the per-type window and the global window. Both
// clocks track the last *fired* event only; suppressed attempts never touch
// them, so a barrage of simultaneous signals cannot keep pushing the window
// forward.
type Cooldown struct {
	mu         sync.Mutex
	perType    time.Duration
	global     time.Duration
	lastByType map[violation.Type]time.Time
	lastGlobal time.Time
}

// NewCooldown builds a limiter with the given per-type and global windows.
// The detection path runs 30s/10s, the lockdown toast path 5s/10s.
func NewCooldown(perType, global time.Duration) *Cooldown {
	return &Cooldown{
		perType:    perType,
		global:     global,
		lastByType: make(map[violation.Type]time.Time),
	}
}

// Allow reports whether a violation of type t may fire at now, and records
// the firing when it does.
func (c *Cooldown) Allow(t violation.Type, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastByType[t]; ok && now.Sub(last) < c.perType {
		return false
	}
	if !c.lastGlobal.IsZero() && now.Sub(c.lastGlobal) < c.global {
		return false
	}
	c.lastByType[t] = now
	c.lastGlobal = now
	return true
}

// Reset clears all cooldown clocks.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastByType = make(map[violation.Type]time.Time)
	c.lastGlobal = time.Time{}
}

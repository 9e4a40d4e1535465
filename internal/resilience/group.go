package resilience

import (
	"sync"
	"time"
)

// Group lazily allocates one Breaker per key so each downstream endpoint
// trips independently. A coordinator talking to three agents keeps three
// circuits; a records outage never blocks insurance calls.
type Group struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	threshold int
	cooldown  time.Duration
}

// NewGroup creates a Group whose breakers all share the same threshold and
// cooldown.
func NewGroup(threshold int, cooldown time.Duration) *Group {
	return &Group{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Get returns the breaker for key, creating it on first use.
func (g *Group) Get(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[key]
	if !ok {
		b = NewBreaker(g.threshold, g.cooldown)
		g.breakers[key] = b
	}
	return b
}

package store

import "sync"

// Counters tracks inbound message counts per chat inside the current
// rate window. The window is reset by the janitor once a day.
type Counters struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCounters() *Counters {
	return &Counters{counts: make(map[string]int)}
}

// Increment bumps the chat's counter and returns the new value.
func (c *Counters) Increment(chatID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[chatID]++
	return c.counts[chatID]
}

func (c *Counters) Count(chatID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[chatID]
}

// Reset clears all counters, starting a new rate window.
func (c *Counters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}

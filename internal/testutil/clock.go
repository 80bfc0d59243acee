package testutil

import (
	"fmt"
	"sync"
	"time"
)

// SessionTime is what FixedClock reports. Archive sessions started at it are
// named 2024-01-15_10-30-00.000Z.
var SessionTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a ks.Clock under test control. Safe for concurrent use.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStubClock creates a StubClock standing still at t.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock standing still at SessionTime.
func FixedClock() *StubClock {
	return NewStubClock(SessionTime)
}

// TickingClock returns a StubClock starting at SessionTime that moves
// forward by step after every reading.
func TickingClock(step time.Duration) *StubClock {
	return &StubClock{now: SessionTime, step: step}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator returns sequential run IDs: "id-1", "id-2", etc.
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{next: 1}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("id-%d", g.next)
	g.next++
	return id
}

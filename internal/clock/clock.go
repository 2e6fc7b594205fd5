package clock

import (
	"sync"
	"time"
)

// Func returns the current time. Services take one so tests can pin time.
type Func func() time.Time

// System returns the wall clock in UTC.
func System() time.Time { return time.Now().UTC() }

// Manual is a clock moved explicitly by tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a clock stopped at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

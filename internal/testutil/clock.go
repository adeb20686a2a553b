package testutil

import (
	"sync"
	"time"
)

// Clock is a settable time source for services that take a now func.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Date returns a clock pinned to midday UTC of the given date.
func Date(year int, month time.Month, day int) *Clock {
	return NewClock(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *Clock) AdvanceDays(n int) {
	c.mu.Lock()
	c.t = c.t.AddDate(0, 0, n)
	c.mu.Unlock()
}

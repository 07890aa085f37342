// Package clock отдаёт сервисам текущее время и считает даты в часовом поясе расписания.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

// NewSystem возвращает системные часы в UTC
func NewSystem() Clock {
	return Func(func() time.Time { return time.Now().UTC() })
}

// Fixed stands still until moved with Set or Advance.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fixed) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

func (c *Fixed) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// At возвращает hour:minute того же календарного дня, что и t, в поясе loc
func At(t time.Time, loc *time.Location, hour, minute int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := t.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}

// internal/licensing/clock.go
package licensing

import "time"

// Clock is the source of "now" for expiration decisions.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type systemClock struct {
	loc *time.Location
}

// NewSystemClock returns a wall clock reporting time in loc (Local when nil).
func NewSystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c systemClock) Location() *time.Location { return c.loc }

// FixedClock always reports the same instant. Set moves it.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time           { return c.T }
func (c *FixedClock) Location() *time.Location { return c.T.Location() }
func (c *FixedClock) Set(t time.Time)          { c.T = t }

// Today is midnight of the current day in the clock's location.
func Today(clock Clock) time.Time {
	return StartOfDay(clock.Now(), clock.Location())
}

package services

import (
	"time"
)

const dayLayout = "2006-01-02"

// Clock defines "now" and the zone that decides calendar days.
// The zero value uses time.Now in UTC.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	return Clock{now: time.Now, loc: loc}
}

// NewClockFunc is for tests and replays that need to steer time.
func NewClockFunc(now func() time.Time, loc *time.Location) Clock {
	return Clock{now: now, loc: loc}
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().In(c.Location())
	}
	return c.now().In(c.Location())
}

// Today is the current calendar day as YYYY-MM-DD.
func (c Clock) Today() string {
	return c.Now().Format(dayLayout)
}

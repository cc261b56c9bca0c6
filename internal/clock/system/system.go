// Package system is the wall-clock implementation of scraper.Clock. Record
// timestamps and debug entries take their time from here so tests can swap
// in a fixed clock.
package system

import "time"

// Clock reads the system time.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Persisted timestamps are always UTC
// so records from different runs compare without zone bookkeeping.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

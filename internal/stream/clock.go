package stream

import "time"

// Clock abstracts pacing so the generator can be driven without wall-clock
// waits.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall-clock implementation used by the run command.
func SystemClock() Clock { return systemClock{} }

// SimulatedClock advances its own notion of time on every wait, so a full
// stream replays immediately. Under this clock the generator emits exactly
// duration/interval points. Not safe for concurrent use.
type SimulatedClock struct {
	now time.Time
}

// NewSimulatedClock starts a simulated clock at the given instant.
func NewSimulatedClock(start time.Time) *SimulatedClock {
	return &SimulatedClock{now: start}
}

func (c *SimulatedClock) Now() time.Time { return c.now }

func (c *SimulatedClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

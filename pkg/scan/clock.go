package scan

import "time"

// Clock is the engine's only notion of time. Every settle, discard and
// inter-node wait goes through Sleep, and timestamps come from Now, so the
// full protocol runs under a simulated clock in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type wallClock struct{}

func (wallClock) Now() time.Time        { return time.Now() }
func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }

// WallClock returns the real-time clock.
func WallClock() Clock { return wallClock{} }

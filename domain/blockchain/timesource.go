package blockchain

import (
	"time"
)

// TimeSource is the clock that block timestamps are checked against.
type TimeSource interface {
	Now() time.Time
}

// localClock reads the system clock truncated to whole seconds, the
// precision block timestamps are encoded with.
type localClock struct{}

func (localClock) Now() time.Time {
	return time.Now().Truncate(time.Second)
}

// NewTimeSource returns a TimeSource backed by the system clock.
func NewTimeSource() TimeSource {
	return localClock{}
}

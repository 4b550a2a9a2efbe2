package chrono

import "time"

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

func (StandardTime) Now() time.Time {
	return time.Now()
}

// FixedTime always returns the same instant, it is meant for tests.
type FixedTime time.Time

func (f FixedTime) Now() time.Time {
	return time.Time(f)
}

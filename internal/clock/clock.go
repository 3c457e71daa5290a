package clock

import "time"

// Clock abstracts wall-clock access so date-gated transitions are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed is a test clock pinned to a single instant.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

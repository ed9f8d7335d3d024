package clock

import "time"

// Clock reads the system wall clock.
type Clock struct{}

// NowUnix returns the current time in unix seconds.
func (Clock) NowUnix() int64 { return time.Now().Unix() }

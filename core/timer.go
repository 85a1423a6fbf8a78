package core

import "time"

// TimerFreq is the tick rate reported as CLOCK_FREQ: one tick per µs.
const TimerFreq = 1000000

// Clock returns ticks since boot.
type Clock func() uint64

// SystemClock returns a Clock counting from the moment it is called.
func SystemClock() Clock {
	boot := time.Now()
	return func() uint64 {
		return uint64(time.Since(boot) / time.Microsecond)
	}
}

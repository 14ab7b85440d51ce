package governor

import "time"

// Clock is the time source of the governor. Tests replace it to drive the state
// machine with synthetic timestamps.
type Clock interface {
	Now() time.Time
	// NewTimer returns a one-shot timer firing after d, or nil if no timer can be armed
	NewTimer(d time.Duration) Timer
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type systemClock struct{}

type systemTimer struct {
	t *time.Timer
}

// SystemClock returns clock backed by the runtime timers.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{t: time.NewTimer(d)}
}

func (s systemTimer) C() <-chan time.Time {
	return s.t.C
}

func (s systemTimer) Stop() bool {
	return s.t.Stop()
}

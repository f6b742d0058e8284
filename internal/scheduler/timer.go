package scheduler

import "time"

// Timer is a cancelable handle to a one-shot scheduled callback. Stop
// reports whether the call prevented the callback from firing.
type Timer interface {
	Stop() bool
}

// TimerEngine abstracts the runtime clock and one-shot timers. The
// schedulers never touch the time package directly, so tests can drive
// timers deterministically.
type TimerEngine interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// clockEngine is the production TimerEngine backed by the runtime clock
type clockEngine struct{}

// NewTimerEngine returns the production timer engine
func NewTimerEngine() TimerEngine {
	return clockEngine{}
}

func (clockEngine) Now() time.Time {
	return time.Now()
}

func (clockEngine) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

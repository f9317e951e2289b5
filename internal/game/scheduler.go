package game

import "time"

// Timer is a cancelable handle to a scheduled task.
type Timer interface {
	// Stop prevents the task from running. It returns false if the task
	// already fired or was already stopped.
	Stop() bool
}

// Scheduler runs f once after d. The production implementation wraps
// time.AfterFunc; tests substitute a manually advanced clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realScheduler struct{}

// RealScheduler returns the wall-clock Scheduler.
func RealScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realScheduler) Now() time.Time {
	return time.Now()
}

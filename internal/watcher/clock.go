package watcher

import "time"

// Clock is the time source for the polling loop. Tests substitute a manual
// clock so cycles can be stepped deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// RealClock returns a Clock backed by the time package
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

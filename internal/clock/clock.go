// Package clock abstracts time so cache TTLs, debounce timers, and
// heartbeats are deterministic under test. Production code injects Real();
// tests inject a Fake and advance it manually.
package clock

import (
	"time"
)

// Clock is the time surface used by discovery, the ticket store, and the
// watch hub. Anything that calls time.Now, time.AfterFunc, or
// time.NewTicker takes a Clock instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d, then calls f in its own goroutine. The
	// returned Timer can cancel the pending call with Stop.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker delivers ticks on C at the given interval until Stop.
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancellable pending call created by AfterFunc.
type Timer interface {
	Stop() bool
}

// Ticker delivers periodic ticks on C.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool { return r.t.Stop() }

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }

func (r *realTicker) Stop() { r.t.Stop() }

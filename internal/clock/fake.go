package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for tests. Advance moves time forward
// and fires any timers or tickers that come due, in order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

// NewFake returns a Fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// AfterFunc registers f to run once the clock has advanced by d.
// If d <= 0 the callback fires on the next Advance call, not immediately.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	timer := &fakeTimer{clock: f, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, timer)

	return timer
}

// NewTicker registers a ticker firing every d of advanced time.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticker := &fakeTicker{
		clock:    f,
		interval: d,
		next:     f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, ticker)

	return ticker
}

// Advance moves the clock forward by d, firing due timers synchronously
// (earliest first) and delivering due ticks. Timer callbacks run without
// the clock lock held, so they may schedule further timers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)

	for {
		timer := f.earliestDueLocked(target)
		if timer == nil {
			break
		}

		f.now = timer.deadline
		f.removeTimerLocked(timer)
		f.deliverTicksLocked()

		fn := timer.fn
		f.mu.Unlock()
		fn()
		f.mu.Lock()
	}

	f.now = target
	f.deliverTicksLocked()
	f.mu.Unlock()
}

func (f *Fake) earliestDueLocked(target time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(f.timers))

	for _, timer := range f.timers {
		if !timer.stopped && !timer.deadline.After(target) {
			due = append(due, timer)
		}
	}

	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })

	return due[0]
}

func (f *Fake) removeTimerLocked(target *fakeTimer) {
	for idx, timer := range f.timers {
		if timer == target {
			f.timers = append(f.timers[:idx], f.timers[idx+1:]...)

			return
		}
	}
}

func (f *Fake) deliverTicksLocked() {
	for _, ticker := range f.tickers {
		for !ticker.stopped && !ticker.next.After(f.now) {
			select {
			case ticker.ch <- ticker.next:
			default: // consumer behind, drop like time.Ticker
			}

			ticker.next = ticker.next.Add(ticker.interval)
		}
	}
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	fn       func()
	stopped  bool
}

// Stop cancels the pending call. Returns false if it already fired or was
// already stopped.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	for _, timer := range t.clock.timers {
		if timer == t && !t.stopped {
			t.stopped = true
			t.clock.removeTimerLocked(t)

			return true
		}
	}

	return false
}

type fakeTicker struct {
	clock    *Fake
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	t.stopped = true
}

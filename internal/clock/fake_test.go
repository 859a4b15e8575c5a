package clock_test

import (
	"testing"
	"time"

	"github.com/markdown-ticket/mdt/internal/clock"
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFake_AfterFuncFiresOnAdvance(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(testStart)

	fired := 0
	fake.AfterFunc(100*time.Millisecond, func() { fired++ })

	fake.Advance(50 * time.Millisecond)

	if fired != 0 {
		t.Fatalf("timer fired %d times before its deadline", fired)
	}

	fake.Advance(50 * time.Millisecond)

	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	// Advancing further never re-fires a one-shot timer.
	fake.Advance(time.Second)

	if fired != 1 {
		t.Fatalf("fired = %d after extra advance, want 1", fired)
	}
}

func TestFake_StopPreventsFiring(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(testStart)

	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer returned false")
	}

	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}

	fake.Advance(2 * time.Second)

	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFake_TimersFireEarliestFirstAndAdvanceNow(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(testStart)

	var order []string

	fake.AfterFunc(200*time.Millisecond, func() { order = append(order, "late") })
	fake.AfterFunc(100*time.Millisecond, func() {
		order = append(order, "early")

		// The clock sits at the firing timer's deadline inside the callback.
		if got := fake.Now(); !got.Equal(testStart.Add(100 * time.Millisecond)) {
			t.Errorf("Now inside callback = %v", got)
		}
	})

	fake.Advance(300 * time.Millisecond)

	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("order = %v", order)
	}

	if got := fake.Now(); !got.Equal(testStart.Add(300 * time.Millisecond)) {
		t.Fatalf("Now = %v, want start+300ms", got)
	}
}

func TestFake_CallbackMayRearm(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(testStart)

	fired := 0

	var rearm func()
	rearm = func() {
		fired++
		if fired < 3 {
			fake.AfterFunc(10*time.Millisecond, rearm)
		}
	}

	fake.AfterFunc(10*time.Millisecond, rearm)
	fake.Advance(time.Second)

	if fired != 3 {
		t.Fatalf("fired = %d, want 3", fired)
	}
}

func TestFake_TickerDeliversAndDropsWhenBehind(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(testStart)

	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// Three intervals elapse but the channel holds one tick; the rest drop
	// like time.Ticker's.
	fake.Advance(3 * time.Second)

	select {
	case <-ticker.C():
	default:
		t.Fatal("no tick delivered")
	}

	select {
	case extra := <-ticker.C():
		t.Fatalf("unexpected buffered tick %v", extra)
	default:
	}

	// Draining makes room for the next interval's tick.
	fake.Advance(time.Second)

	select {
	case <-ticker.C():
	default:
		t.Fatal("no tick after drain and advance")
	}
}

func TestFake_StoppedTickerStaysQuiet(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(testStart)

	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(5 * time.Second)

	select {
	case <-ticker.C():
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

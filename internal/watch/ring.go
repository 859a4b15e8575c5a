package watch

import "sync"

// ringCapacity bounds the replay log; the oldest events drop first.
const ringCapacity = 50

// eventRing is a bounded most-recent-N event log, safe for concurrent
// push from watcher callbacks and snapshot from request-handling code.
type eventRing struct {
	mu     sync.Mutex
	events []Event
	start  int
	count  int
}

func newEventRing(capacity int) *eventRing {
	if capacity <= 0 {
		capacity = ringCapacity
	}

	return &eventRing{events: make([]Event, capacity)}
}

// push appends an event, evicting the oldest when full.
func (r *eventRing) push(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.events) {
		r.events[(r.start+r.count)%len(r.events)] = event
		r.count++

		return
	}

	r.events[r.start] = event
	r.start = (r.start + 1) % len(r.events)
}

// snapshot returns the retained events oldest-first.
func (r *eventRing) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, r.count)
	for idx := 0; idx < r.count; idx++ {
		out = append(out, r.events[(r.start+idx)%len(r.events)])
	}

	return out
}

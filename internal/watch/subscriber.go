package watch

import (
	"log/slog"
)

// subscriberChannelSize buffers each subscriber's channel. A slow
// subscriber drops events rather than blocking the watch loop.
const subscriberChannelSize = 64

// Subscriber is one registered consumer of the event feed. Membership is
// explicit: callers must Unsubscribe when done, the hub never relies on
// garbage collection of a callback.
type Subscriber struct {
	ch chan Event
}

// Events returns the subscriber's receive channel. The channel is closed
// by Unsubscribe.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Subscribe registers a new subscriber. The replay log is delivered
// first, then a connection event, then live events as they settle.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Event, subscriberChannelSize)}

	for _, event := range h.ring.snapshot() {
		sub.ch <- event
	}

	sub.ch <- Event{Type: TypeConnection, Timestamp: h.clk.Now()}

	h.subMu.Lock()
	h.subscribers[sub] = struct{}{}
	h.subMu.Unlock()

	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// once per subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.subMu.Lock()
	_, present := h.subscribers[sub]
	delete(h.subscribers, sub)
	h.subMu.Unlock()

	if present {
		close(sub.ch)
	}
}

// broadcast delivers an event to every subscriber without blocking: a
// full channel drops the event for that subscriber only.
func (h *Hub) broadcast(event Event) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			h.log.Debug("subscriber behind, dropping event", slog.String("type", string(event.Type)))
		}
	}
}

package stream

import "sync"

type (
	// Subscription is a receiver on a Hub. Close releases it; a closed
	// subscription's channel is drained and closed by the hub.
	Subscription struct {
		C <-chan Event

		ch  chan Event
		hub *Hub
	}

	// Hub is an in-process fan-out of change events. Publish never blocks:
	// a subscriber that cannot keep up has events dropped rather than
	// stalling the publisher.
	Hub struct {
		mutex  sync.RWMutex
		subs   map[*Subscription]struct{}
		closed bool
	}
)

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new receiver with the given channel buffer.
func (h *Hub) Subscribe(buffer int) *Subscription {
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish fans the event out to all current subscribers without blocking.
func (h *Hub) Publish(evt Event) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		select {
		case sub.ch <- evt:
		default: // slow consumer; drop
		}
	}
}

// Close shuts the hub down and closes all subscription channels.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// Close removes the subscription from its hub and closes its channel.
func (s *Subscription) Close() {
	s.hub.mutex.Lock()
	defer s.hub.mutex.Unlock()
	if _, ok := s.hub.subs[s]; !ok {
		return
	}
	delete(s.hub.subs, s)
	close(s.ch)
}

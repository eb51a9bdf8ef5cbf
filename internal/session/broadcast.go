package session

import "sync"

// broadcastCapacity bounds each subscriber's queue. A subscriber that falls
// this far behind loses its oldest unread event rather than stall the
// publisher.
const broadcastCapacity = 1024

type subscriber struct {
	ch     chan Event
	lagged bool
}

// broadcaster fans events out to an open set of subscribers. There is no Go
// stdlib or corpus equivalent of a bounded multi-consumer broadcast channel,
// so this is a mutex-guarded registry of per-subscriber buffered channels
// with non-blocking, drop-oldest delivery.
type broadcaster struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscriber
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]*subscriber)}
}

// subscribe registers a new subscriber and returns its receive channel, an
// id for later Unsubscribe, and a function reporting whether it has ever
// dropped an event.
func (b *broadcaster) subscribe() (<-chan Event, uint64, func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &subscriber{ch: make(chan Event, broadcastCapacity)}
	b.subs[id] = sub

	lagged := func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		s, ok := b.subs[id]
		return ok && s.lagged
	}
	return sub.ch, id, lagged
}

func (b *broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// publish fans ev out to every subscriber without blocking. Every channel
// operation here uses a default arm, so holding mu across the loop cannot
// deadlock a publisher against a slow subscriber.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}

		select {
		case <-sub.ch:
		default:
		}
		sub.lagged = true

		select {
		case sub.ch <- ev:
		default:
		}
	}
}

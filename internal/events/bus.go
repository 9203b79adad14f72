package events

import (
	"sync"

	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
)

// DefaultQueueSize is the per-subscriber buffer. A subscriber that falls
// this far behind is dropped rather than allowed to stall publishers.
const DefaultQueueSize = 256

// Subscription is one subscriber's view of the bus. Its channel is closed
// when the subscription is dropped or closed; a closed channel tells the
// observer to resynchronize from a snapshot.
type Subscription struct {
	ch   chan Event
	bus  *Bus
	once sync.Once
}

// Events returns the subscriber's ordered event channel.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Bus fans events out to subscribers. Publish never blocks: each subscriber
// has its own buffered queue and slow subscribers are dropped.
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	queue   int
	metrics *metrics.Registry
}

// NewBus creates a bus with the default per-subscriber queue size. reg may
// be nil.
func NewBus(reg *metrics.Registry) *Bus {
	return NewBusWithQueue(DefaultQueueSize, reg)
}

// NewBusWithQueue creates a bus with an explicit queue size.
func NewBusWithQueue(queue int, reg *metrics.Registry) *Bus {
	if queue < 1 {
		queue = 1
	}
	return &Bus{
		subs:    make(map[*Subscription]struct{}),
		queue:   queue,
		metrics: reg,
	}
}

// Subscribe attaches a new subscriber. Events published after this call are
// delivered in publish order.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		ch:  make(chan Event, b.queue),
		bus: b,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, present := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()
	if present {
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Publish delivers the event to every subscriber without blocking. A
// subscriber whose queue is full is dropped and its channel closed.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	var dropped []*Subscription
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range dropped {
		sub.once.Do(func() { close(sub.ch) })
		logging.Warn("dropping slow event subscriber", "queued", b.queue)
		if b.metrics != nil {
			b.metrics.SubscribersDropped.Inc()
		}
	}
	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(event.Type()).Inc()
	}
}

// SubscriberCount reports the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops all subscribers, closing their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

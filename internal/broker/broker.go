package broker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/device"
)

// ErrClosed is returned when subscribing to a broker that has been shut down
var ErrClosed = errors.New("broker closed")

// DefaultQueueSize is the per-subscriber queue bound used when none is configured
const DefaultQueueSize = 16

type NotificationType int

const (
	// Change carries a non-empty device delta
	Change NotificationType = iota
	// ProbeFailed reports a probe cycle that could not reach the platform API
	ProbeFailed
)

func (t NotificationType) String() string {
	switch t {
	case Change:
		return "change"
	case ProbeFailed:
		return "probe-failed"
	default:
		return "unknown"
	}
}

// Notification is the unit delivered to subscribers
type Notification struct {
	Type      NotificationType
	Kind      device.Kind
	Change    device.ChangeEvent
	Err       error
	Timestamp time.Time
}

// Subscription is a single consumer's bounded queue
type Subscription struct {
	id      uuid.UUID
	ch      chan Notification
	dropped atomic.Uint64
	broker  *Broker
}

func (s *Subscription) ID() uuid.UUID { return s.id }

// C returns the delivery channel. It is closed when the subscription is
// cancelled or the broker shuts down; queued notifications remain readable.
func (s *Subscription) C() <-chan Notification { return s.ch }

// Dropped returns how many notifications were discarded because the queue was full
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Cancel stops delivery and releases the queue
func (s *Subscription) Cancel() {
	s.broker.Unsubscribe(s.id)
}

// Broker fans notifications out to subscribers without ever blocking the publisher
type Broker struct {
	log       zerolog.Logger
	queueSize int

	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	closed bool
}

func New(queueSize int, log zerolog.Logger) *Broker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broker{
		log:       log,
		queueSize: queueSize,
		subs:      make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a new consumer
func (b *Broker) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		id:     uuid.New(),
		ch:     make(chan Notification, b.queueSize),
		broker: b,
	}
	b.subs[sub.id] = sub
	b.log.Debug().Str("subscriber", sub.id.String()).Int("subscribers", len(b.subs)).Msg("Subscriber added")
	return sub, nil
}

// Unsubscribe removes the subscriber and closes its queue. Unknown IDs are ignored.
func (b *Broker) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
	b.log.Debug().Str("subscriber", id.String()).Int("subscribers", len(b.subs)).Msg("Subscriber removed")
}

// Publish delivers n to every subscriber. A full queue drops its oldest entry.
func (b *Broker) Publish(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		b.deliver(sub, n)
	}
}

func (b *Broker) deliver(sub *Subscription, n Notification) {
	select {
	case sub.ch <- n:
		return
	default:
	}

	// Queue full: evict the oldest entry to make room
	select {
	case <-sub.ch:
		sub.dropped.Add(1)
	default:
	}

	select {
	case sub.ch <- n:
	default:
		sub.dropped.Add(1)
	}

	b.log.Debug().
		Str("subscriber", sub.id.String()).
		Uint64("dropped", sub.dropped.Load()).
		Msg("Subscriber queue full")
}

// Count returns the number of active subscribers
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber queue. Further Publish calls are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

package event

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Bus provides pub/sub distribution of execution events.
type Bus interface {
	// Publish sends an event to all matching subscribers.
	Publish(evt Event) error

	// Subscribe creates a subscription for specific event types.
	// An empty type list subscribes to all events.
	Subscribe(types ...string) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription is an active subscription to the bus.
type Subscription interface {
	// Events returns the channel events are delivered on.
	// The channel is closed when the subscription or bus is closed.
	Events() <-chan Event

	// Unsubscribe removes the subscription and closes its channel.
	Unsubscribe()

	// Pause temporarily stops delivery. Events published while paused
	// are skipped for this subscription, not queued.
	Pause()

	// Resume continues delivery after Pause.
	Resume()
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256.
	BufferSize int

	// NonBlocking makes Publish drop events when a subscriber's buffer
	// is full instead of blocking. DefaultBusConfig enables it so the
	// executor never stalls on a slow subscriber.
	NonBlocking bool

	// OnDrop is called when an event is dropped (non-blocking mode).
	OnDrop func(evt Event, subscriberID string)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize:  256,
	NonBlocking: true,
}

// LocalBus is an in-memory Bus implementation.
type LocalBus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*subscription

	nextID atomic.Int64
	closed atomic.Bool
}

// NewBus creates a new local event bus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	return &LocalBus{
		config:        config,
		subscriptions: make(map[string]*subscription),
	}
}

// subscription is the internal Subscription implementation.
type subscription struct {
	id     string
	types  map[string]bool // empty = all types
	events chan Event
	paused atomic.Bool
	once   sync.Once
	bus    *LocalBus
}

// Publish implements Bus.
func (b *LocalBus) Publish(evt Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscriptions {
		if sub.paused.Load() {
			continue
		}
		if len(sub.types) > 0 && !sub.types[evt.Type] {
			continue
		}

		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt, sub.id)
				}
			}
		} else {
			sub.events <- evt
		}
	}

	return nil
}

// Subscribe implements Bus.
func (b *LocalBus) Subscribe(types ...string) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	sub := &subscription{
		id:     strconv.FormatInt(b.nextID.Add(1), 10),
		types:  typeSet,
		events: make(chan Event, b.config.BufferSize),
		bus:    b,
	}

	if b.closed.Load() {
		close(sub.events)
		return sub
	}

	b.subscriptions[sub.id] = sub
	return sub
}

// Close implements Bus.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions {
		sub.once.Do(func() { close(sub.events) })
	}
	b.subscriptions = make(map[string]*subscription)

	return nil
}

// Events implements Subscription.
func (s *subscription) Events() <-chan Event {
	return s.events
}

// Unsubscribe implements Subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if _, ok := s.bus.subscriptions[s.id]; ok {
		delete(s.bus.subscriptions, s.id)
		s.once.Do(func() { close(s.events) })
	}
}

// Pause implements Subscription.
func (s *subscription) Pause() {
	s.paused.Store(true)
}

// Resume implements Subscription.
func (s *subscription) Resume() {
	s.paused.Store(false)
}

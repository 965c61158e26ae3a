package bus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler receives the payload of an emitted event.
type Handler func(payload any)

// Bus is an in-process publish/subscribe registry. Callback subscribers are
// keyed by exact event name; channel subscribers filter by namespace prefix.
// A Bus is owned by whoever constructs it and is not shared process-wide.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]*Subscription
	subs     map[int]*subscription
	next     int
	logger   *zap.Logger
}

type subscription struct {
	namespace string
	ch        chan Event
}

// Subscription is the handle returned by On. Removal is by handle identity.
type Subscription struct {
	bus  *Bus
	name string
	id   int
	fn   Handler
}

// Name returns the event name the subscription listens to.
func (s *Subscription) Name() string { return s.name }

// Unsubscribe removes the subscription from its bus. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.bus != nil {
		s.bus.Off(s)
	}
}

// New creates a new event bus. A nil logger discards handler failures.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]*Subscription),
		subs:     make(map[int]*subscription),
		logger:   logger,
	}
}

// On registers fn for the named event and returns its handle.
func (b *Bus) On(name string, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{bus: b, name: name, id: b.next, fn: fn}
	b.next++
	b.handlers[name] = append(b.handlers[name], sub)
	return sub
}

// Off removes exactly the registration identified by sub. Other callbacks
// for the same name are untouched.
func (b *Bus) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.name]
	for i, s := range list {
		if s.id == sub.id {
			// Copy so a concurrent Emit iterating the old slice is unaffected.
			next := make([]*Subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(b.handlers, sub.name)
			} else {
				b.handlers[sub.name] = next
			}
			return
		}
	}
}

// Count returns the number of callbacks registered for name.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// Emit synchronously invokes every callback registered for name, in
// registration order, then forwards the event to matching channel
// subscribers. A panicking callback is logged and does not stop the rest.
func (b *Bus) Emit(name string, payload any) {
	b.mu.RLock()
	list := b.handlers[name]
	b.mu.RUnlock()

	for _, sub := range list {
		b.invoke(sub, payload)
	}

	b.Publish(Event{Kind: name, Timestamp: time.Now(), Payload: payload})
}

func (b *Bus) invoke(sub *Subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler failed",
				zap.String("event", sub.name),
				zap.Int("subscription", sub.id),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	sub.fn(payload)
}

// Publish sends an event to all channel subscribers whose namespace is a prefix of event.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				// Drop event if subscriber is full (non-blocking).
			}
		}
	}
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

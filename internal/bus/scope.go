package bus

import "sync"

// Scope groups subscriptions so they can be released together. After Close,
// further registrations through the scope are refused.
type Scope struct {
	bus    *Bus
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// Scope returns a new, empty subscription group on b.
func (b *Bus) Scope() *Scope {
	return &Scope{bus: b}
}

// On registers fn on the underlying bus and tracks it. Returns nil if the
// scope is already closed.
func (s *Scope) On(name string, fn Handler) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	sub := s.bus.On(name, fn)
	s.subs = append(s.subs, sub)
	return sub
}

// Len returns the number of live subscriptions held by the scope.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close unregisters every subscription made through the scope. Idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.closed = true
	s.mu.Unlock()

	for _, sub := range subs {
		s.bus.Off(sub)
	}
}

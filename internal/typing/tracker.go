// Package typing derives "currently typing" sets from start/stop events and
// throttles the local user's own typing signal.
package typing

import (
	"slices"
	"sync"
	"time"
)

// DefaultExpiry bounds how long a remote user stays "typing" without a refresh.
const DefaultExpiry = 3 * time.Second

// Tracker holds at most one live expiry timer per user. Output order is the
// order in which users started typing.
type Tracker struct {
	mu       sync.Mutex
	ttl      time.Duration
	order    []string
	entries  map[string]*entry
	onChange func()
	seq      uint64
	closed   bool
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

// NewTracker creates a tracker whose entries expire after ttl. onChange, if
// set, is called without the tracker lock after every effective change.
func NewTracker(ttl time.Duration, onChange func()) *Tracker {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	return &Tracker{
		ttl:      ttl,
		entries:  make(map[string]*entry),
		onChange: onChange,
	}
}

// Start adds user or restarts its expiry. Returns true if user was newly added.
func (t *Tracker) Start(user string) bool {
	t.mu.Lock()
	if t.closed || user == "" {
		t.mu.Unlock()
		return false
	}
	e, ok := t.entries[user]
	if ok {
		e.timer.Stop()
	} else {
		e = &entry{}
		t.entries[user] = e
		t.order = append(t.order, user)
	}
	// Generations are tracker-wide so a timer from a removed entry can never
	// match a later entry for the same user.
	t.seq++
	e.gen = t.seq
	gen := e.gen
	e.timer = time.AfterFunc(t.ttl, func() { t.expire(user, gen) })
	t.mu.Unlock()

	if !ok {
		t.changed()
	}
	return !ok
}

// Stop removes user. Returns false if user was not typing.
func (t *Tracker) Stop(user string) bool {
	t.mu.Lock()
	removed := t.removeLocked(user)
	t.mu.Unlock()

	if removed {
		t.changed()
	}
	return removed
}

func (t *Tracker) expire(user string, gen uint64) {
	t.mu.Lock()
	e, ok := t.entries[user]
	// A stale timer (restarted, stopped or closed tracker) is a no-op.
	if t.closed || !ok || e.gen != gen {
		t.mu.Unlock()
		return
	}
	t.removeLocked(user)
	t.mu.Unlock()

	t.changed()
}

func (t *Tracker) removeLocked(user string) bool {
	e, ok := t.entries[user]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.entries, user)
	if i := slices.Index(t.order, user); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
	return true
}

// Users returns the currently typing users in insertion order.
func (t *Tracker) Users() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.order)
}

// Pending returns the number of live expiry timers.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Close stops every timer and drops all entries. Further calls are no-ops.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.timer.Stop()
	}
	t.entries = make(map[string]*entry)
	t.order = nil
	t.closed = true
}

func (t *Tracker) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}

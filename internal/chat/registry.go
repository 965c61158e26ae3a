package chat

import (
	"context"
	"sync"

	"github.com/matheus3301/roomchat/internal/status"
	"go.uber.org/zap"
)

// Registry shares one Session per room inside a process. Every Acquire must
// be paired with a Release; the session is closed when the last holder
// releases it.
type Registry struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	session *Session
	refs    int
	ready   chan struct{}
	err     error
}

// NewRegistry creates a registry whose sessions are built with opts.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the session for room, initializing it on first use.
// Concurrent callers for the same room wait for the same initialization.
//
// A failed first history fetch or connect does not discard the session: it
// is returned ERRORED together with the error, stays registered, and the
// caller holds a reference it must Release. Reconnect recovers it.
func (r *Registry) Acquire(ctx context.Context, room string) (*Session, error) {
	r.mu.Lock()
	if e, ok := r.entries[room]; ok {
		e.refs++
		r.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			r.release(room, e)
			return nil, ctx.Err()
		}
		if e.session == nil {
			return nil, e.err
		}
		if e.err != nil && e.session.State().Status == status.Errored {
			return e.session, e.err
		}
		return e.session, nil
	}

	e := &entry{refs: 1, ready: make(chan struct{})}
	r.entries[room] = e
	r.mu.Unlock()

	s := New(room, r.opts)
	err := s.Initialize(ctx)
	if err != nil && s.State().Status == status.Closed {
		r.mu.Lock()
		if r.entries[room] == e {
			delete(r.entries, room)
		}
		r.mu.Unlock()
		e.err = err
		close(e.ready)
		return nil, err
	}
	e.session = s
	e.err = err
	close(e.ready)
	if err != nil {
		r.logger.Warn("room session started with an error", zap.String("room", room), zap.Error(err))
		return s, err
	}
	return s, nil
}

// Release drops one reference to room's session.
func (r *Registry) Release(room string) {
	r.mu.Lock()
	e := r.entries[room]
	r.mu.Unlock()
	if e != nil {
		r.release(room, e)
	}
}

func (r *Registry) release(room string, e *entry) {
	r.mu.Lock()
	if r.entries[room] != e {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, room)
	r.mu.Unlock()

	<-e.ready
	if e.session != nil {
		e.session.Close()
	}
}

// Refs returns the number of holders of room's session.
func (r *Registry) Refs(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[room]; ok {
		return e.refs
	}
	return 0
}

// Close closes every session regardless of outstanding references.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.session != nil {
			e.session.Close()
		}
	}
}

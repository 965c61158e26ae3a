package typing

import (
	"sync"
	"time"
)

// DefaultIdle is how long after the last keystroke the local user is
// considered to have stopped typing.
const DefaultIdle = 2500 * time.Millisecond

// Indicator forwards only typing transitions of the local user to send and
// emits the stop transition itself after an idle period.
type Indicator struct {
	mu     sync.Mutex
	idle   time.Duration
	send   func(isTyping bool) bool
	typing bool
	timer  *time.Timer
	gen    uint64
	closed bool
}

// NewIndicator creates an indicator. send reports whether the signal was transmitted.
func NewIndicator(idle time.Duration, send func(isTyping bool) bool) *Indicator {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Indicator{idle: idle, send: send}
}

// Set records a keystroke (true) or an explicit stop (false). Returns true
// if a frame was transmitted.
func (i *Indicator) Set(isTyping bool) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return false
	}

	if !isTyping {
		if !i.typing {
			return false
		}
		i.stopTimerLocked()
		i.typing = false
		return i.send(false)
	}

	sent := false
	if !i.typing {
		if !i.send(true) {
			return false
		}
		i.typing = true
		sent = true
	}
	i.stopTimerLocked()
	gen := i.gen
	i.timer = time.AfterFunc(i.idle, func() { i.expire(gen) })
	return sent
}

// Typing reports whether the last transmitted state is "typing".
func (i *Indicator) Typing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.typing
}

func (i *Indicator) expire(gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed || gen != i.gen || !i.typing {
		return
	}
	i.timer = nil
	i.typing = false
	i.send(false)
}

func (i *Indicator) stopTimerLocked() {
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.gen++
}

// Close cancels the idle timer without sending anything.
func (i *Indicator) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopTimerLocked()
	i.closed = true
}

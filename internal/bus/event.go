package bus

import "time"

// Event is what channel subscribers receive: the emitted name, when it was
// emitted, and its payload.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

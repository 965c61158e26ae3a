package typing

import (
	"slices"
	"time"

	"github.com/matheus3301/roomchat/internal/protocol"
)

// Aggregate replays events in order and returns who is typing at now.
// A user appears at most once, keeps the position of their first start, and
// is absent once ttl has elapsed since their last start. A start arriving
// after the user's entry expired counts as a new entry at the end, as with
// Tracker.
func Aggregate(events []protocol.TypingEvent, now time.Time, ttl time.Duration) []string {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	var order []string
	lastSeen := make(map[string]time.Time)

	for _, evt := range events {
		if evt.Username == "" {
			continue
		}
		last, present := lastSeen[evt.Username]
		if present && evt.Timestamp.Sub(last) >= ttl {
			delete(lastSeen, evt.Username)
			i := slices.Index(order, evt.Username)
			order = slices.Delete(order, i, i+1)
			present = false
		}
		switch {
		case evt.IsTyping && present:
			lastSeen[evt.Username] = evt.Timestamp
		case evt.IsTyping:
			lastSeen[evt.Username] = evt.Timestamp
			order = append(order, evt.Username)
		case present:
			delete(lastSeen, evt.Username)
			i := slices.Index(order, evt.Username)
			order = slices.Delete(order, i, i+1)
		}
	}

	out := make([]string, 0, len(order))
	for _, user := range order {
		if now.Sub(lastSeen[user]) < ttl {
			out = append(out, user)
		}
	}
	return out
}

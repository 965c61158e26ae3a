package chat

import (
	"slices"
	"sort"

	"github.com/matheus3301/roomchat/internal/protocol"
)

// timeline is the ordered message list of a room, oldest first, with no two
// entries sharing an ID. Messages are kept sorted by ID so that a history
// page and a live delivery produce the same list whichever lands first.
type timeline struct {
	msgs []protocol.Message
}

// upsert inserts m at its position, or merges it into the existing entry
// with the same ID. Reports whether m was new.
func (t *timeline) upsert(m protocol.Message) bool {
	i, found := t.search(m.ID)
	if found {
		mergeInto(&t.msgs[i], m)
		return false
	}
	// Live messages are almost always the newest; skip the copy in that case.
	if i == len(t.msgs) {
		t.msgs = append(t.msgs, m)
		return true
	}
	t.msgs = slices.Insert(t.msgs, i, m)
	return true
}

// merge applies a whole page and returns how many messages were new. The
// page may be in any order.
func (t *timeline) merge(page []protocol.Message) int {
	added := 0
	for _, m := range page {
		if m.ID == 0 {
			continue
		}
		if t.upsert(m) {
			added++
		}
	}
	return added
}

// translate patches the translated body of message id. Reports whether the
// message exists.
func (t *timeline) translate(id int64, body string) bool {
	i, found := t.search(id)
	if !found {
		return false
	}
	t.msgs[i].TranslatedBody = body
	return true
}

func (t *timeline) get(id int64) (protocol.Message, bool) {
	i, found := t.search(id)
	if !found {
		return protocol.Message{}, false
	}
	return t.msgs[i], true
}

// oldest returns the smallest ID, or 0 when empty.
func (t *timeline) oldest() int64 {
	if len(t.msgs) == 0 {
		return 0
	}
	return t.msgs[0].ID
}

// newest returns the largest ID, or 0 when empty.
func (t *timeline) newest() int64 {
	if len(t.msgs) == 0 {
		return 0
	}
	return t.msgs[len(t.msgs)-1].ID
}

func (t *timeline) len() int { return len(t.msgs) }

func (t *timeline) snapshot() []protocol.Message {
	return slices.Clone(t.msgs)
}

func (t *timeline) search(id int64) (int, bool) {
	i := sort.Search(len(t.msgs), func(i int) bool { return t.msgs[i].ID >= id })
	return i, i < len(t.msgs) && t.msgs[i].ID == id
}

// mergeInto updates the fields of an existing message that may legitimately
// change after creation. Everything else is immutable.
func mergeInto(dst *protocol.Message, src protocol.Message) {
	if src.TranslatedBody != "" {
		dst.TranslatedBody = src.TranslatedBody
	}
}

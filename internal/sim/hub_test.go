package sim

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, m *member) []protocol.Frame {
	t.Helper()
	return queued(m)
}

// queued empties m's outbound queue without blocking.
func queued(m *member) []protocol.Frame {
	var frames []protocol.Frame
	for {
		select {
		case data, ok := <-m.send:
			if !ok {
				return frames
			}
			var f protocol.Frame
			if json.Unmarshal(data, &f) == nil {
				frames = append(frames, f)
			}
		default:
			return frames
		}
	}
}

func hasType(frames []protocol.Frame, typ string) bool {
	for _, f := range frames {
		if f.Type == typ {
			return true
		}
	}
	return false
}

func TestHubJoinAnnouncesAndListsOnline(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx := context.Background()

	ana := testMember("c1", "alpha", "u1", "ana", 8)
	bo := testMember("c2", "alpha", "u2", "bo", 8)
	other := testMember("c3", "beta", "u3", "cy", 8)
	hub.Join(ctx, ana)
	hub.Join(ctx, bo)
	hub.Join(ctx, other)

	frames := drain(t, ana)
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.FrameUserStatusUpdate, frames[1].Type)
	assert.Equal(t, "bo", frames[1].Username)
	assert.True(t, frames[1].Online)
	assert.Empty(t, drain(t, ana), "beta traffic leaked into alpha")

	assert.Equal(t, []protocol.OnlineUser{{ID: "u1", Name: "ana"}, {ID: "u2", Name: "bo"}}, hub.Online("alpha"))
	assert.Equal(t, 2, hub.Members("alpha"))
	assert.Empty(t, hub.Online("gamma"))
}

func TestHubOnlineDedupesUsers(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx := context.Background()
	hub.Join(ctx, testMember("c1", "alpha", "u1", "ana", 8))
	hub.Join(ctx, testMember("c2", "alpha", "u1", "ana", 8))

	assert.Equal(t, 2, hub.Members("alpha"))
	assert.Len(t, hub.Online("alpha"), 1)
}

func TestHubLeaveIsIdempotent(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx := context.Background()
	ana := testMember("c1", "alpha", "u1", "ana", 8)
	bo := testMember("c2", "alpha", "u2", "bo", 8)
	hub.Join(ctx, ana)
	hub.Join(ctx, bo)
	drain(t, bo)

	hub.Leave(ctx, ana)
	hub.Leave(ctx, ana)

	frames := drain(t, bo)
	require.Len(t, frames, 1, "second Leave must not announce again")
	assert.False(t, frames[0].Online)
	assert.Equal(t, "ana", frames[0].Username)

	drain(t, ana)
	_, open := <-ana.send
	assert.False(t, open, "send queue should be closed")
	assert.Equal(t, 1, hub.Members("alpha"))
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx := context.Background()
	ana := testMember("c1", "alpha", "u1", "ana", 8)
	bo := testMember("c2", "alpha", "u2", "bo", 8)
	hub.Join(ctx, ana)
	hub.Join(ctx, bo)
	drain(t, ana)
	drain(t, bo)

	hub.Broadcast(ctx, "alpha", protocol.TypingIndicatorFrame("ana", true, time.Now()), ana.id)

	assert.Empty(t, drain(t, ana))
	frames := drain(t, bo)
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.FrameTypingIndicator, frames[0].Type)
}

func TestHubDropsSlowMember(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx := context.Background()
	slow := testMember("c1", "alpha", "u1", "ana", 1)
	hub.Join(ctx, slow) // fills the single slot with its own status frame

	hub.Broadcast(ctx, "alpha", protocol.TypingIndicatorFrame("bo", true, time.Now()), "")

	assert.Equal(t, 0, hub.Members("alpha"))
	frames := drain(t, slow)
	assert.Len(t, frames, 1)
}

func TestHubCloseDisconnectsEveryone(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx := context.Background()
	a := testMember("c1", "alpha", "u1", "ana", 8)
	b := testMember("c2", "beta", "u2", "bo", 8)
	hub.Join(ctx, a)
	hub.Join(ctx, b)

	hub.Close()

	assert.Equal(t, 0, hub.Members("alpha"))
	assert.Equal(t, 0, hub.Members("beta"))
	drain(t, a)
	_, open := <-a.send
	assert.False(t, open)
}

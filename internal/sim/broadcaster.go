package sim

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisChannel carries envelopes for every room.
const redisChannel = "roomchat:broadcast"

// Envelope is a frame addressed to the members of one room. Origin is the
// node that produced it; Exclude is a connection id on that node.
type Envelope struct {
	Origin  string         `json:"origin"`
	Room    string         `json:"room"`
	Exclude string         `json:"exclude,omitempty"`
	Frame   protocol.Frame `json:"frame"`
}

// Broadcaster relays envelopes to other backend nodes. Local delivery is the
// hub's job; a broadcaster only hands it envelopes produced elsewhere.
type Broadcaster interface {
	Start(ctx context.Context, node string, deliver func(Envelope)) error
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Local is the single-node broadcaster: nothing to relay.
type Local struct{}

func (Local) Start(context.Context, string, func(Envelope)) error { return nil }
func (Local) Publish(context.Context, Envelope) error              { return nil }
func (Local) Close() error                                         { return nil }

// RedisBroadcaster fans envelopes out through redis pub/sub so several
// backend nodes can serve the same room.
type RedisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger
	pubsub *redis.PubSub
}

// NewRedisBroadcaster connects to the redis server at url (redis://host:port/db).
func NewRedisBroadcaster(url string, logger *zap.Logger) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{client: redis.NewClient(opts), logger: logger}, nil
}

// Start subscribes and returns once the subscription is confirmed. Envelopes
// that originated on node are skipped since the hub already delivered them.
func (r *RedisBroadcaster) Start(ctx context.Context, node string, deliver func(Envelope)) error {
	pubsub := r.client.Subscribe(ctx, redisChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", redisChannel, err)
	}
	r.pubsub = pubsub

	go func() {
		for msg := range pubsub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("bad envelope on redis", zap.Error(err))
				continue
			}
			if env.Origin == node {
				continue
			}
			deliver(env)
		}
	}()
	return nil
}

// Publish sends env to every subscribed node.
func (r *RedisBroadcaster) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return r.client.Publish(ctx, redisChannel, data).Err()
}

// Close ends the subscription and the client.
func (r *RedisBroadcaster) Close() error {
	if r.pubsub != nil {
		_ = r.pubsub.Close()
	}
	return r.client.Close()
}

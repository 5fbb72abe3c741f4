// Package channel is the pub/sub layer that fans frames out to
// connected clients. Every connection subscribes to its own direct
// channel plus any groups it belongs to; all cross-connection
// messaging goes through here.
package channel

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// LobbyGroup is the group channel shared by every lobby connection.
const LobbyGroup = "group:global_lobby"

// Layer publishes and subscribes through Redis pub/sub.
type Layer struct {
	rdb *redis.Client
}

// New creates a layer on an established Redis client.
func New(rdb *redis.Client) *Layer {
	return &Layer{rdb: rdb}
}

// Publish delivers a frame to every subscriber of a channel. Direct
// channels have one subscriber; group channels fan out.
func (l *Layer) Publish(ctx context.Context, channelName string, payload []byte) error {
	return l.rdb.Publish(ctx, channelName, payload).Err()
}

// Subscribe opens a subscription on the given channels. The caller
// owns the subscription and must Close it.
func (l *Layer) Subscribe(ctx context.Context, channels ...string) *Subscription {
	return &Subscription{ps: l.rdb.Subscribe(ctx, channels...)}
}

// Subscription is one connection's view of its subscribed channels.
type Subscription struct {
	ps *redis.PubSub
}

// Frames returns the stream of incoming payloads. The channel closes
// when the subscription does.
func (s *Subscription) Frames() <-chan []byte {
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range s.ps.Channel() {
			out <- []byte(msg.Payload)
		}
	}()
	return out
}

// Close tears the subscription down.
func (s *Subscription) Close() error {
	return s.ps.Close()
}

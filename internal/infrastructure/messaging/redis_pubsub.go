package messaging

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// GoRedisPubSub adapts a go-redis client to RedisClient.
type GoRedisPubSub struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// NewGoRedisPubSub wraps an existing client. Closing the adapter closes the
// subscription only; the client stays owned by the caller.
func NewGoRedisPubSub(client *redis.Client) *GoRedisPubSub {
	return &GoRedisPubSub{client: client}
}

// Publish implements RedisClient.
func (p *GoRedisPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe implements RedisClient. The returned channel is closed when ctx
// is cancelled or the subscription ends.
func (p *GoRedisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	p.pubsub = p.client.Subscribe(ctx, channels...)

	// Wait for the subscription confirmation so that errors surface here.
	if _, err := p.pubsub.Receive(ctx); err != nil {
		_ = p.pubsub.Close()
		return nil, err
	}

	out := make(chan RedisMessage)
	in := p.pubsub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close implements RedisClient.
func (p *GoRedisPubSub) Close() error {
	if p.pubsub == nil {
		return nil
	}
	return p.pubsub.Close()
}

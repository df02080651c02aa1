package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// eventStreamMaxLen is the approximate maximum length for the durable event
// stream, enforced via XADD MAXLEN ~.
const eventStreamMaxLen int64 = 10000

// EventBus implements domain.EventBus using Redis Pub/Sub for live delivery
// and a Redis Stream for a durable trail the balance-recovery collaborator
// can replay after downtime.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

// Publish sends payload to the Pub/Sub channel and appends it to the stream
// of the same name.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	pipe := b.rdb.Pipeline()
	pipe.Publish(ctx, channel, payload)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: "events:" + channel,
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

var _ domain.EventBus = (*EventBus)(nil)

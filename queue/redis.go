package queue

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sksmith/allocation-service/core/allocation"
)

func NewRedisClient(ctx context.Context, addr, pass string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WithMessagef(err, "failed to connect to redis at %s", addr)
	}
	return client, nil
}

// RedisPublisher publishes each event on the channel prefix + event name.
type RedisPublisher struct {
	client redis.Cmdable
	prefix string
}

func NewRedisPublisher(client redis.Cmdable, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Channel(name string) string {
	return p.prefix + name
}

func (p *RedisPublisher) Publish(ctx context.Context, evt allocation.Event) error {
	body, err := allocation.Marshal(evt)
	if err != nil {
		return errors.WithMessage(err, "failed to serialize event for redis")
	}
	if err = p.client.Publish(ctx, p.Channel(evt.Name()), body).Err(); err != nil {
		return errors.WithMessagef(err, "failed to publish %s to redis", evt.Name())
	}
	return nil
}

// Package bus publishes emitted signals to a Redis Pub/Sub channel so other
// processes can consume them live. The bus is optional: the monitor treats
// a nil publisher as "log sink only".
package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher sends raw signal payloads to a single Redis channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

func NewPublisher(addr, password string, db int, channel string) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Publisher{rdb: rdb, channel: channel}
}

// Ping verifies connectivity; called once at startup so a misconfigured
// address surfaces immediately instead of on the first signal.
func (p *Publisher) Ping(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping %s: %w", p.rdb.Options().Addr, err)
	}
	return nil
}

// Publish sends a raw byte payload to the configured channel.
func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}

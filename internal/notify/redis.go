package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/abhisek/coursetape/internal/logging"
)

// redisBroker forwards change events over Redis pub/sub so multiple
// clients for the same user converge on the same progress state.
type redisBroker struct {
	log *logging.Logger
	rdb *goredis.Client
}

// NewRedisBroker connects to Redis at addr and verifies the connection
// with a ping before returning.
func NewRedisBroker(addr string, log *logging.Logger) (Broker, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBroker{log: log.With("component", "redis-broker"), rdb: rdb}, nil
}

func (b *redisBroker) Publish(ctx context.Context, channel string, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.rdb.Publish(ctx, channel, raw).Err()
}

func (b *redisBroker) Subscribe(ctx context.Context, channel string, h Handler) (func(), error) {
	sub := b.rdb.Subscribe(ctx, channel)

	// Confirm the subscription is established before returning, so a
	// caller's follow-up refetch cannot race ahead of delivery.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("drop undecodable event", "channel", channel, "err", err)
				continue
			}
			h(ev)
		}
	}()

	teardown := func() {
		if err := sub.Close(); err != nil {
			b.log.Warn("close redis subscription", "channel", channel, "err", err)
		}
	}
	return teardown, nil
}

func (b *redisBroker) Close() error {
	return b.rdb.Close()
}

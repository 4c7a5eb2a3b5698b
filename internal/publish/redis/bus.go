// Package redis publishes signals over Redis: Pub/Sub for ephemeral
// decisions, a capped stream for the durable swap log.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sol-signal-bot/internal/config"
	"sol-signal-bot/internal/publish"
	"sol-signal-bot/internal/swap"
)

// streamMaxLen is the approximate maximum stream length, enforced via
// XADD MAXLEN ~.
const streamMaxLen int64 = 10000

type Bus struct {
	rdb             *redis.Client
	swapStream      string
	decisionChannel string
}

func NewBus(ctx context.Context, cfg config.RedisConfig) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Bus{
		rdb:             rdb,
		swapStream:      cfg.SwapStream,
		decisionChannel: cfg.DecisionChannel,
	}, nil
}

// PublishSwap appends a msgpack swap frame to the durable stream.
func (b *Bus) PublishSwap(ctx context.Context, result swap.Result) error {
	payload, err := publish.EncodeSwapFrame(result)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: b.swapStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", b.swapStream, err)
	}
	return nil
}

// PublishDecision broadcasts a decision as JSON on the pub/sub channel.
func (b *Bus) PublishDecision(ctx context.Context, event publish.DecisionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.decisionChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", b.decisionChannel, err)
	}
	return nil
}

func (b *Bus) Close() error {
	return b.rdb.Close()
}

var _ publish.Publisher = (*Bus)(nil)

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"printrelay/internal/config"
)

const channelPrefix = "printrelay:jobs:"

// RedisNotifier pushes job-created signals over a pub/sub channel per client
// id. A coarse fallback tick covers signals lost while re-subscribing.
type RedisNotifier struct {
	client       *redis.Client
	fallbackTick time.Duration
	logger       *slog.Logger
}

func NewRedisNotifier(ctx context.Context, cfg config.RedisConfig, fallbackTick time.Duration, logger *slog.Logger) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if fallbackTick <= 0 {
		fallbackTick = 30 * time.Second
	}

	return &RedisNotifier{
		client:       client,
		fallbackTick: fallbackTick,
		logger:       logger,
	}, nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, clientID string, fn func()) {
	channel := channelPrefix + clientID

	go func() {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0
		bo.MaxInterval = time.Minute

		for {
			pubsub := n.client.Subscribe(ctx, channel)
			ch := pubsub.Channel()
			for range ch {
				bo.Reset()
				fn()
			}
			pubsub.Close()

			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.NextBackOff()):
				n.logger.Warn("resubscribing to job notifications", "channel", channel)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(n.fallbackTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (n *RedisNotifier) JobCreated(ctx context.Context, clientID string) error {
	return n.client.Publish(ctx, channelPrefix+clientID, "created").Err()
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

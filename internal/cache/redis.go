package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/splits-network/messaging-service/internal/config"
)

func NewRedis(cfg *config.Config) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// WindowCounter increments a key inside a fixed TTL window. Expiry is the
// cache's job; no cleanup pass exists anywhere else.
type WindowCounter struct {
	cli *redis.Client
}

func NewWindowCounter(cli *redis.Client) *WindowCounter {
	return &WindowCounter{cli: cli}
}

func (w *WindowCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := w.cli.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		w.cli.Expire(ctx, key, window)
	}
	return count, nil
}

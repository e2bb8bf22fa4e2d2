package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"koko/stream-loadgen/internal/config"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	client *redis.Client
}

func NewRedis(cfg *config.StoreConfig) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

func (r *Redis) Set(ctx context.Context, deviceID string, value float64, ttl time.Duration) error {
	return r.client.Set(ctx, key(deviceID), formatValue(value), ttl).Err()
}

func (r *Redis) Get(ctx context.Context, deviceID string) (float64, bool, error) {
	s, err := r.client.Get(ctx, key(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

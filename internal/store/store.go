package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"koko/stream-loadgen/internal/config"
)

const KeyPrefix = "stream:data:"

// Store keeps the most recent CPU reading per device.
type Store interface {
	Set(ctx context.Context, deviceID string, value float64, ttl time.Duration) error
	Get(ctx context.Context, deviceID string) (float64, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

func New(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case config.StoreMemory:
		return NewMemory(nil), nil
	case config.StoreRedis:
		return NewRedis(cfg), nil
	default:
		return nil, fmt.Errorf("unknown store type: %v", cfg.Type)
	}
}

func key(deviceID string) string {
	return KeyPrefix + deviceID
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

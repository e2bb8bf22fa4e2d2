package forward

import (
	"context"
	"encoding/json"
	"fmt"

	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/metric"
	"koko/stream-loadgen/internal/telemetry"
)

// Forwarder republishes accepted records keyed by device id.
type Forwarder interface {
	Send(ctx context.Context, rec telemetry.Record) error
	Close() error
}

func New(cfg *config.ForwardConfig, ms metric.Service) (Forwarder, error) {
	switch cfg.Type {
	case config.ForwardNone, "":
		return Nop{}, nil
	case config.ForwardSarama:
		return NewSarama(cfg, ms)
	case config.ForwardSegment:
		return NewSegment(cfg, ms)
	case config.ForwardConfluent:
		return NewConfluent(cfg)
	case config.ForwardMqtt:
		return NewMqtt(cfg)
	default:
		return nil, fmt.Errorf("unknown forward type: %v", cfg.Type)
	}
}

type Nop struct{}

func (Nop) Send(context.Context, telemetry.Record) error { return nil }
func (Nop) Close() error                                  { return nil }

func encode(rec telemetry.Record) ([]byte, error) {
	return json.Marshal(rec)
}

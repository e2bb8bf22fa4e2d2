package forward

import (
	"context"
	"log/slog"
	"time"

	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/metric"
	"koko/stream-loadgen/internal/telemetry"

	kafka "github.com/segmentio/kafka-go"
)

type segmentWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.WriterStats
	Close() error
}

type segmentForwarder struct {
	cfg     *config.ForwardConfig
	writer  segmentWriter
	metrics metric.Service
	done    chan struct{}
}

func NewSegment(cfg *config.ForwardConfig, ms metric.Service) (Forwarder, error) {
	f := &segmentForwarder{cfg: cfg, metrics: ms, done: make(chan struct{})}
	w := &kafka.Writer{
		Addr:       kafka.TCP(cfg.Brokers...),
		Topic:      cfg.Topic,
		Balancer:   &kafka.Hash{},
		Async:      true,
		Completion: f.completion,
	}
	if err := applySegmentClientConfig(w, cfg.ClientConfig); err != nil {
		return nil, err
	}
	tlsCfg, err := tlsConfig(cfg)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		w.Transport = &kafka.Transport{TLS: tlsCfg, ClientID: cfg.ClientID}
	}
	f.writer = w
	return f.start(), nil
}

func newSegment(cfg *config.ForwardConfig, w segmentWriter, ms metric.Service) *segmentForwarder {
	f := &segmentForwarder{cfg: cfg, writer: w, metrics: ms, done: make(chan struct{})}
	return f.start()
}

func (f *segmentForwarder) start() *segmentForwarder {
	slog.Info("Creating forwarder.", "type", config.ForwardSegment, "topic", f.cfg.Topic, "brokers", f.cfg.Brokers)
	if f.metrics.Config().Enable.Producer {
		go func() {
			ticker := time.NewTicker(f.cfg.MetricsFlushDuration)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					f.metrics.RecordSegmentMetrics(f.writer.Stats())
				case <-f.done:
					return
				}
			}
		}()
	}
	return f
}

func (f *segmentForwarder) completion(messages []kafka.Message, err error) {
	if err != nil {
		slog.Error("Kafka delivery failure.", "error", err, "messages", len(messages))
	}
}

func (f *segmentForwarder) Send(ctx context.Context, rec telemetry.Record) error {
	value, err := encode(rec)
	if err != nil {
		return err
	}
	return f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.DeviceID),
		Value: value,
		Time:  time.Unix(rec.Timestamp, 0),
	})
}

func (f *segmentForwarder) Close() error {
	close(f.done)
	return f.writer.Close()
}

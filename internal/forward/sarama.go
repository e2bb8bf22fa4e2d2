package forward

import (
	"context"
	"log/slog"
	"time"

	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/metric"
	"koko/stream-loadgen/internal/telemetry"

	"github.com/IBM/sarama"
	gometrics "github.com/rcrowley/go-metrics"
)

type saramaAsyncProducer interface {
	Input() chan<- *sarama.ProducerMessage
	Errors() <-chan *sarama.ProducerError
	Close() error
}

func saramaConfig(cfg *config.ForwardConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Errors = true
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	if err := applySaramaClientConfig(sc, cfg.ClientConfig); err != nil {
		return nil, err
	}
	tlsCfg, err := tlsConfig(cfg)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsCfg
	}
	return sc, sc.Validate()
}

type saramaForwarder struct {
	cfg      *config.ForwardConfig
	ap       saramaAsyncProducer
	registry gometrics.Registry
	metrics  metric.Service
	done     chan struct{}
}

func NewSarama(cfg *config.ForwardConfig, ms metric.Service) (Forwarder, error) {
	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	ap, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return newSarama(cfg, ap, sc.MetricRegistry, ms), nil
}

func newSarama(cfg *config.ForwardConfig, ap saramaAsyncProducer, registry gometrics.Registry, ms metric.Service) *saramaForwarder {
	slog.Info("Creating forwarder.", "type", config.ForwardSarama, "topic", cfg.Topic, "brokers", cfg.Brokers)
	f := &saramaForwarder{cfg: cfg, ap: ap, registry: registry, metrics: ms, done: make(chan struct{})}
	go func() {
		for e := range ap.Errors() {
			slog.Error("Kafka delivery failure.", "error", e.Err, "topic", e.Msg.Topic)
		}
	}()
	if registry != nil && ms.Config().Enable.Producer {
		go f.flushMetrics()
	}
	return f
}

func (f *saramaForwarder) Send(ctx context.Context, rec telemetry.Record) error {
	value, err := encode(rec)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:     f.cfg.Topic,
		Key:       sarama.StringEncoder(rec.DeviceID),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Unix(rec.Timestamp, 0),
	}
	select {
	case f.ap.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *saramaForwarder) flushMetrics() {
	ticker := time.NewTicker(f.cfg.MetricsFlushDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.metrics.RecordSaramaMetrics(f.registry)
		case <-f.done:
			return
		}
	}
}

func (f *saramaForwarder) Close() error {
	close(f.done)
	return f.ap.Close()
}

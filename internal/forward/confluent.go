package forward

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/telemetry"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const flushTimeoutMs = 5000

type confluentProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

type confluentForwarder struct {
	topic    string
	producer confluentProducer
	events   chan struct{}
}

func NewConfluent(cfg *config.ForwardConfig) (Forwarder, error) {
	cm, err := confluentConfigMap(cfg)
	if err != nil {
		return nil, err
	}
	p, err := kafka.NewProducer(cm)
	if err != nil {
		return nil, err
	}
	return newConfluent(cfg, p), nil
}

// confluentConfigMap maps the forward tls block onto librdkafka ssl keys.
// Entries in clientConfig are applied last and win.
func confluentConfigMap(cfg *config.ForwardConfig) (*kafka.ConfigMap, error) {
	cm := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"client.id":         cfg.ClientID,
	}
	if t := cfg.Tls; t != nil && !(t.Insecure && t.CAFile == "" && t.CAPem == "") {
		if t.MinVersion != "" || t.ServerName != "" {
			return nil, fmt.Errorf("tls minVersion and serverNameOverride are not supported by the %s forwarder", config.ForwardConfluent)
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		ssl := map[string]string{
			"security.protocol":        "ssl",
			"ssl.ca.location":          t.CAFile,
			"ssl.ca.pem":               t.CAPem,
			"ssl.certificate.location": t.CertFile,
			"ssl.key.location":         t.KeyFile,
		}
		for k, v := range ssl {
			if v != "" {
				(*cm)[k] = v
			}
		}
		if t.InsecureSkipVerify {
			(*cm)["enable.ssl.certificate.verification"] = false
			(*cm)["ssl.endpoint.identification.algorithm"] = "none"
		}
	}
	for k, v := range cfg.ClientConfig {
		if err := cm.SetKey(k, v); err != nil {
			return nil, err
		}
	}
	return cm, nil
}

func newConfluent(cfg *config.ForwardConfig, p confluentProducer) *confluentForwarder {
	slog.Info("Creating forwarder.", "type", config.ForwardConfluent, "topic", cfg.Topic, "brokers", cfg.Brokers)
	f := &confluentForwarder{topic: cfg.Topic, producer: p, events: make(chan struct{})}
	go func() {
		defer close(f.events)
		for e := range p.Events() {
			f.processEvent(e)
		}
	}()
	return f
}

func (f *confluentForwarder) processEvent(event kafka.Event) {
	switch ev := event.(type) {
	case *kafka.Message:
		if ev.TopicPartition.Error != nil {
			slog.Error("Kafka delivery failure.", "error", ev.TopicPartition.Error)
		}
	case kafka.Error:
		slog.Error("Kafka client error.", "error", ev.Error(), "code", ev.Code())
	default:
		slog.Debug("Kafka event received.", "event", ev.String())
	}
}

func (f *confluentForwarder) Send(_ context.Context, rec telemetry.Record) error {
	value, err := encode(rec)
	if err != nil {
		return err
	}
	return f.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &f.topic, Partition: kafka.PartitionAny},
		Key:            []byte(rec.DeviceID),
		Value:          value,
		Timestamp:      time.Unix(rec.Timestamp, 0),
	}, nil)
}

func (f *confluentForwarder) Close() error {
	if remaining := f.producer.Flush(flushTimeoutMs); remaining > 0 {
		slog.Warn("Closing producer with undelivered messages.", "count", remaining)
	}
	f.producer.Close()
	<-f.events
	return nil
}

package forward

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"koko/stream-loadgen/internal/config"

	"github.com/IBM/sarama"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	segment "github.com/segmentio/kafka-go"
)

// The sarama, segment and mqtt forwarders accept a small set of
// clientConfig keys. The confluent forwarder passes the map through to
// librdkafka unchanged.

func applySaramaClientConfig(sc *sarama.Config, cc map[string]any) error {
	for k, v := range cc {
		s := fmt.Sprint(v)
		var err error
		switch k {
		case "producer.required.acks":
			var acks int
			if acks, err = parseAcks(s); err == nil {
				sc.Producer.RequiredAcks = sarama.RequiredAcks(acks)
			}
		case "producer.compression":
			err = sc.Producer.Compression.UnmarshalText([]byte(s))
		case "producer.flush.frequency":
			sc.Producer.Flush.Frequency, err = time.ParseDuration(s)
		case "producer.flush.messages":
			sc.Producer.Flush.Messages, err = strconv.Atoi(s)
		case "producer.retry.max":
			sc.Producer.Retry.Max, err = strconv.Atoi(s)
		case "version":
			sc.Version, err = sarama.ParseKafkaVersion(s)
		default:
			return fmt.Errorf("unsupported sarama client config: %v", k)
		}
		if err != nil {
			return fmt.Errorf("invalid sarama client config %v: %w", k, err)
		}
	}
	return nil
}

func applySegmentClientConfig(w *segment.Writer, cc map[string]any) error {
	for k, v := range cc {
		s := fmt.Sprint(v)
		var err error
		switch k {
		case "batch.size":
			w.BatchSize, err = strconv.Atoi(s)
		case "batch.timeout":
			w.BatchTimeout, err = time.ParseDuration(s)
		case "required.acks":
			var acks int
			if acks, err = parseAcks(s); err == nil {
				w.RequiredAcks = segment.RequiredAcks(acks)
			}
		case "compression":
			w.Compression, err = segmentCompression(s)
		case "max.attempts":
			w.MaxAttempts, err = strconv.Atoi(s)
		default:
			return fmt.Errorf("unsupported segment client config: %v", k)
		}
		if err != nil {
			return fmt.Errorf("invalid segment client config %v: %w", k, err)
		}
	}
	return nil
}

func applyMqttClientConfig(opts *mqtt.ClientOptions, cc map[string]any) error {
	for k, v := range cc {
		s := fmt.Sprint(v)
		switch k {
		case "username":
			opts.SetUsername(s)
		case "password":
			opts.SetPassword(s)
		case "clean.session":
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid mqtt client config %v: %w", k, err)
			}
			opts.SetCleanSession(b)
		case "keep.alive":
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid mqtt client config %v: %w", k, err)
			}
			opts.SetKeepAlive(d)
		default:
			return fmt.Errorf("unsupported mqtt client config: %v", k)
		}
	}
	return nil
}

// parseAcks accepts the names used by librdkafka as well as the numeric
// values.
func parseAcks(s string) (int, error) {
	switch strings.ToLower(s) {
	case "none", "0":
		return 0, nil
	case "one", "local", "1":
		return 1, nil
	case "all", "-1":
		return -1, nil
	}
	return 0, fmt.Errorf("unsupported acks value: %q", s)
}

func segmentCompression(s string) (segment.Compression, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return 0, nil
	case "gzip":
		return segment.Gzip, nil
	case "snappy":
		return segment.Snappy, nil
	case "lz4":
		return segment.Lz4, nil
	case "zstd":
		return segment.Zstd, nil
	}
	return 0, fmt.Errorf("unsupported compression: %q", s)
}

// tlsConfig returns nil when the forwarder connects in plaintext.
func tlsConfig(cfg *config.ForwardConfig) (*tls.Config, error) {
	if cfg.Tls == nil {
		return nil, nil
	}
	return cfg.Tls.LoadTLSConfig()
}

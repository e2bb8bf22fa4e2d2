package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	ForwardNone      = "none"
	ForwardSarama    = "sarama"
	ForwardSegment   = "segment"
	ForwardConfluent = "confluent"
	ForwardMqtt      = "mqtt"
)

type SinkConfig struct {
	Addr      string        `yaml:"addr" default:":8080"`
	Window    int           `yaml:"window" default:"50"`
	Threshold float64       `yaml:"threshold" default:"2.0"`
	Store     StoreConfig   `yaml:"store"`
	Forward   ForwardConfig `yaml:"forward"`
}

type StoreConfig struct {
	Type     string        `yaml:"type" default:"memory"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl" default:"15m"`
}

// ForwardConfig selects where accepted records are republished. The topic
// of an mqtt forwarder may contain a {device_id} placeholder.
type ForwardConfig struct {
	Type                 string         `yaml:"type" default:"none"`
	Topic                string         `yaml:"topic" default:"telemetry"`
	Brokers              []string       `yaml:"brokers"`
	ClientID             string         `yaml:"clientId" default:"stream-loadgen"`
	ClientConfig         map[string]any `yaml:"clientConfig"`
	Qos                  byte           `yaml:"qos" default:"1"`
	MetricsFlushDuration time.Duration  `yaml:"metricsFlushDuration" default:"5s"`
	Tls                  *TlsConfig     `yaml:"tls"`
}

func (c *SinkConfig) validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("invalid config, sink window must be greater than zero: %d", c.Window)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("invalid config, sink threshold must be greater than zero: %v", c.Threshold)
	}
	switch c.Store.Type {
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(c.Store.Addr) == "" {
			return fmt.Errorf("invalid config, redis store requires an addr")
		}
	default:
		return fmt.Errorf("invalid config, unknown store type: %v", c.Store.Type)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("invalid config, store ttl cannot be negative")
	}
	switch c.Forward.Type {
	case ForwardNone:
		return nil
	case ForwardSarama, ForwardSegment, ForwardConfluent, ForwardMqtt:
		if len(c.Forward.Brokers) == 0 {
			return fmt.Errorf("invalid config, %s forwarder requires at least one broker", c.Forward.Type)
		}
		if strings.TrimSpace(c.Forward.Topic) == "" {
			return fmt.Errorf("invalid config, forward topic cannot be blank")
		}
		if c.Forward.Qos > 2 {
			return fmt.Errorf("invalid config, forward qos must be 0, 1 or 2: %d", c.Forward.Qos)
		}
		if c.Forward.Tls != nil {
			if err := c.Forward.Tls.Validate(); err != nil {
				return fmt.Errorf("invalid config, forward tls: %w", err)
			}
		}
	default:
		return fmt.Errorf("invalid config, unknown forward type: %v", c.Forward.Type)
	}
	return nil
}

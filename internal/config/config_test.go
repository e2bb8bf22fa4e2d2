package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"koko/stream-loadgen/internal/util"

	"github.com/stretchr/testify/require"
)

func formatCfg(s string) string {
	return strings.ReplaceAll(s, "\t", "  ")
}

func defaultConfig() Config {
	return Config{
		Attack: AttackConfig{
			Target:    "http://localhost:8080",
			Path:      "/stream",
			Users:     10,
			Duration:  30 * time.Second,
			Timeout:   30 * time.Second,
			KeepAlive: true,
		},
		Sink: SinkConfig{
			Addr:      ":8080",
			Window:    50,
			Threshold: 2.0,
			Store:     StoreConfig{Type: StoreMemory, Addr: "localhost:6379", TTL: 15 * time.Minute},
			Forward: ForwardConfig{
				Type:                 ForwardNone,
				Topic:                "telemetry",
				ClientID:             "stream-loadgen",
				Qos:                  1,
				MetricsFlushDuration: 5 * time.Second,
			},
		},
		Metrics: MetricsConfig{Otel: OtelConfig{ExportInterval: 5 * time.Second}},
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  func(c *Config)
	}{
		{
			name:  "empty",
			input: ``,
			want:  func(c *Config) {},
		},
		{
			name: "attack only",
			input: `
			attack:
				target: http://sink:9090
				users: 50
				rate: 200
				duration: 1m
				requests: 1000
				seed: 42
			`,
			want: func(c *Config) {
				c.Attack.Target = "http://sink:9090"
				c.Attack.Users = 50
				c.Attack.Rate = 200
				c.Attack.Duration = time.Minute
				c.Attack.Requests = 1000
				c.Attack.Seed = util.Ptr(uint64(42))
			},
		},
		{
			name: "zero duration",
			input: `
			attack:
				duration: 0s
				keepAlive: false
			`,
			want: func(c *Config) {
				c.Attack.Duration = 0
				c.Attack.KeepAlive = false
			},
		},
		{
			name: "sink with redis and sarama",
			input: `
			sink:
				addr: ":9000"
				window: 10
				threshold: 3
				store:
					type: redis
					addr: redis:6379
					ttl: 1m
				forward:
					type: sarama
					topic: cpu
					brokers:
						- broker1:9092
						- broker2:9092
			`,
			want: func(c *Config) {
				c.Sink.Addr = ":9000"
				c.Sink.Window = 10
				c.Sink.Threshold = 3
				c.Sink.Store.Type = StoreRedis
				c.Sink.Store.Addr = "redis:6379"
				c.Sink.Store.TTL = time.Minute
				c.Sink.Forward.Type = ForwardSarama
				c.Sink.Forward.Topic = "cpu"
				c.Sink.Forward.Brokers = []string{"broker1:9092", "broker2:9092"}
			},
		},
		{
			name: "confluent client config",
			input: `
			sink:
				forward:
					type: confluent
					brokers: [broker:9092]
					clientConfig:
						linger.ms: 5
						acks: all
			`,
			want: func(c *Config) {
				c.Sink.Forward.Type = ForwardConfluent
				c.Sink.Forward.Brokers = []string{"broker:9092"}
				c.Sink.Forward.ClientConfig = map[string]any{"linger.ms": 5, "acks": "all"}
			},
		},
		{
			name: "mqtt with tls",
			input: `
			sink:
				forward:
					type: mqtt
					topic: devices/{device_id}/telemetry
					brokers: [ssl://broker:8883]
					qos: 0
					tls:
						insecureSkipVerify: true
			`,
			want: func(c *Config) {
				c.Sink.Forward.Type = ForwardMqtt
				c.Sink.Forward.Topic = "devices/{device_id}/telemetry"
				c.Sink.Forward.Brokers = []string{"ssl://broker:8883"}
				c.Sink.Forward.Qos = 0
				c.Sink.Forward.Tls = &TlsConfig{InsecureSkipVerify: true}
			},
		},
		{
			name: "metrics all",
			input: `
			metrics:
				enable:
					all: true
				otel:
					endpoint: otel-collector:4317
					tls:
						insecure: true
			`,
			want: func(c *Config) {
				c.Metrics.Enable = MetricsEnableConfig{All: true, Attack: true, Host: true, Http: true, Producer: true, Runtime: true}
				c.Metrics.Otel = OtelConfig{
					Endpoint:       "otel-collector:4317",
					Tls:            TlsConfig{Insecure: true},
					ExportInterval: 5 * time.Second,
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := loadFromBytes([]byte(formatCfg(tc.input)))
			require.NoError(t, err)
			want := defaultConfig()
			tc.want(&want)
			require.Equal(t, want, *cfg)
		})
	}
}

func TestConfigEnvVars(t *testing.T) {
	t.Setenv("SINK_URL", "http://sink.internal:8080")
	input := `
	attack:
		target: ${env:SINK_URL}
		users: ${env:STREAMLOAD_TEST_USERS|3}
	`
	cfg, err := loadFromBytes([]byte(formatCfg(input)))
	require.NoError(t, err)
	require.Equal(t, "http://sink.internal:8080", cfg.Attack.Target)
	require.Equal(t, uint64(3), cfg.Attack.Users)
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bad target scheme", input: "attack:\n\ttarget: ftp://host"},
		{name: "target without host", input: "attack:\n\ttarget: http://"},
		{name: "relative path", input: "attack:\n\tpath: stream"},
		{name: "zero users", input: "attack:\n\tusers: 0"},
		{name: "negative rate", input: "attack:\n\trate: -1"},
		{name: "bad duration", input: "attack:\n\tduration: soon"},
		{name: "bad tls version", input: "attack:\n\ttls:\n\t\tminVersion: \"2.0\""},
		{name: "cert without key", input: "attack:\n\ttls:\n\t\tcertFile: cert.pem"},
		{name: "zero window", input: "sink:\n\twindow: 0"},
		{name: "negative threshold", input: "sink:\n\tthreshold: -1"},
		{name: "unknown store", input: "sink:\n\tstore:\n\t\ttype: etcd"},
		{name: "unknown forwarder", input: "sink:\n\tforward:\n\t\ttype: pulsar\n\t\tbrokers: [b:1]"},
		{name: "forwarder without brokers", input: "sink:\n\tforward:\n\t\ttype: segment"},
		{name: "blank topic", input: "sink:\n\tforward:\n\t\ttype: mqtt\n\t\tbrokers: [tcp://b:1883]\n\t\ttopic: \" \""},
		{name: "bad qos", input: "sink:\n\tforward:\n\t\ttype: mqtt\n\t\tbrokers: [tcp://b:1883]\n\t\tqos: 3"},
		{name: "bad forward tls", input: "sink:\n\tforward:\n\t\ttype: sarama\n\t\tbrokers: [b:1]\n\t\ttls:\n\t\t\tkeyFile: key.pem"},
		{name: "not yaml", input: "attack: [users"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadFromBytes([]byte(formatCfg(tc.input)))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("attack:\n  users: 4\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(4), cfg.Attack.Users)

	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, uint64(10), cfg.Attack.Users)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTlsConfig(t *testing.T) {
	cfg, err := TlsConfig{Insecure: true}.LoadTLSConfig()
	require.NoError(t, err)
	require.Nil(t, cfg)

	cfg, err = TlsConfig{MinVersion: "1.3", ServerName: "sink", InsecureSkipVerify: true}.LoadTLSConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, uint16(0x0304), cfg.MinVersion)
	require.Equal(t, "sink", cfg.ServerName)
	require.True(t, cfg.InsecureSkipVerify)

	_, err = TlsConfig{CAPem: "not a pem"}.LoadTLSConfig()
	require.Error(t, err)
}

package forward

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/metric"
	"koko/stream-loadgen/internal/telemetry"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	segment "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

const testTopic = "telemetry"

var testRecord = telemetry.Record{DeviceID: "device_7", Timestamp: 1700000000, CPU: 42.5, RPS: 300}

func testConfig() *config.ForwardConfig {
	return &config.ForwardConfig{
		Topic:                testTopic,
		Brokers:              []string{"localhost:9092"},
		ClientID:             "test",
		Qos:                  1,
		MetricsFlushDuration: time.Second,
	}
}

func testMetrics(t *testing.T) metric.Service {
	ms, err := metric.NewService(&config.MetricsConfig{})
	require.NoError(t, err)
	return ms
}

func TestNew(t *testing.T) {
	ms := testMetrics(t)

	f, err := New(&config.ForwardConfig{Type: config.ForwardNone}, ms)
	require.NoError(t, err)
	require.Equal(t, Nop{}, f)
	require.NoError(t, f.Send(context.Background(), testRecord))
	require.NoError(t, f.Close())

	_, err = New(&config.ForwardConfig{Type: "carrier-pigeon"}, ms)
	require.Error(t, err)
}

func TestSaramaSend(t *testing.T) {
	want, err := json.Marshal(testRecord)
	require.NoError(t, err)

	ap := mocks.NewAsyncProducer(t, nil)
	ap.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != string(want) {
			return errors.New("unexpected value: " + string(val))
		}
		return nil
	})
	ap.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	f := newSarama(testConfig(), ap, nil, testMetrics(t))
	require.NoError(t, f.Send(context.Background(), testRecord))
	require.NoError(t, f.Send(context.Background(), testRecord))
	require.NoError(t, f.Close())
}

type blockedSaramaProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func (p *blockedSaramaProducer) Input() chan<- *sarama.ProducerMessage { return p.input }
func (p *blockedSaramaProducer) Errors() <-chan *sarama.ProducerError  { return p.errors }
func (p *blockedSaramaProducer) Close() error {
	close(p.errors)
	return nil
}

func TestSaramaSendCancelled(t *testing.T) {
	p := &blockedSaramaProducer{input: make(chan *sarama.ProducerMessage), errors: make(chan *sarama.ProducerError)}
	f := newSarama(testConfig(), p, nil, testMetrics(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, f.Send(ctx, testRecord), context.Canceled)
	require.NoError(t, f.Close())
}

type testSegmentWriter struct {
	mu       sync.Mutex
	messages []segment.Message
	err      error
	closed   bool
}

func (w *testSegmentWriter) WriteMessages(_ context.Context, msgs ...segment.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *testSegmentWriter) Stats() segment.WriterStats {
	return segment.WriterStats{Topic: testTopic}
}

func (w *testSegmentWriter) Close() error {
	w.closed = true
	return nil
}

func TestSegmentSend(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "ok"},
		{name: "write error", err: errors.New("boom"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &testSegmentWriter{err: tt.err}
			f := newSegment(testConfig(), w, testMetrics(t))
			err := f.Send(context.Background(), testRecord)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Len(t, w.messages, 1)
			require.Equal(t, "device_7", string(w.messages[0].Key))
			require.JSONEq(t, `{"device_id":"device_7","timestamp":1700000000,"cpu":42.5,"rps":300}`, string(w.messages[0].Value))
			require.Equal(t, time.Unix(1700000000, 0), w.messages[0].Time)
			require.NoError(t, f.Close())
			require.True(t, w.closed)
		})
	}
}

type testConfluentProducer struct {
	messages []*kafka.Message
	events   chan kafka.Event
	flushed  bool
}

func (p *testConfluentProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	p.messages = append(p.messages, msg)
	p.events <- msg
	return nil
}

func (p *testConfluentProducer) Events() chan kafka.Event {
	return p.events
}

func (p *testConfluentProducer) Flush(int) int {
	p.flushed = true
	return 0
}

func (p *testConfluentProducer) Close() {
	close(p.events)
}

func TestConfluentSend(t *testing.T) {
	p := &testConfluentProducer{events: make(chan kafka.Event, 10)}
	f := newConfluent(testConfig(), p)

	require.NoError(t, f.Send(context.Background(), testRecord))
	require.Len(t, p.messages, 1)
	msg := p.messages[0]
	require.Equal(t, testTopic, *msg.TopicPartition.Topic)
	require.Equal(t, kafka.PartitionAny, msg.TopicPartition.Partition)
	require.Equal(t, "device_7", string(msg.Key))
	require.JSONEq(t, `{"device_id":"device_7","timestamp":1700000000,"cpu":42.5,"rps":300}`, string(msg.Value))

	p.events <- kafka.NewError(kafka.ErrTransport, "broker down", false)
	require.NoError(t, f.Close())
	require.True(t, p.flushed)
	select {
	case _, ok := <-f.events:
		require.False(t, ok)
	default:
		require.Fail(t, "event loop still running after Close")
	}
}

func TestConfluentConfigMap(t *testing.T) {
	tests := []struct {
		name    string
		tls     *config.TlsConfig
		client  map[string]any
		want    kafka.ConfigMap
		wantErr bool
	}{
		{
			name: "plaintext",
			want: kafka.ConfigMap{"bootstrap.servers": "localhost:9092", "client.id": "test"},
		},
		{
			name: "insecure without ca",
			tls:  &config.TlsConfig{Insecure: true},
			want: kafka.ConfigMap{"bootstrap.servers": "localhost:9092", "client.id": "test"},
		},
		{
			name: "mutual tls",
			tls:  &config.TlsConfig{CAFile: "ca.pem", CertFile: "cert.pem", KeyFile: "key.pem"},
			want: kafka.ConfigMap{
				"bootstrap.servers":        "localhost:9092",
				"client.id":                "test",
				"security.protocol":        "ssl",
				"ssl.ca.location":          "ca.pem",
				"ssl.certificate.location": "cert.pem",
				"ssl.key.location":         "key.pem",
			},
		},
		{
			name:   "skip verify with sasl override",
			tls:    &config.TlsConfig{CAPem: "-----BEGIN CERTIFICATE-----", InsecureSkipVerify: true},
			client: map[string]any{"security.protocol": "sasl_ssl"},
			want: kafka.ConfigMap{
				"bootstrap.servers":                     "localhost:9092",
				"client.id":                             "test",
				"security.protocol":                     "sasl_ssl",
				"ssl.ca.pem":                            "-----BEGIN CERTIFICATE-----",
				"enable.ssl.certificate.verification":   false,
				"ssl.endpoint.identification.algorithm": "none",
			},
		},
		{name: "min version", tls: &config.TlsConfig{MinVersion: "1.3"}, wantErr: true},
		{name: "cert without key", tls: &config.TlsConfig{CertFile: "cert.pem"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Tls = tt.tls
			cfg.ClientConfig = tt.client
			cm, err := confluentConfigMap(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, *cm)
		})
	}
}

type testToken struct {
	err  error
	done chan struct{}
}

func newTestToken(err error) *testToken {
	t := &testToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *testToken) Wait() bool                     { return true }
func (t *testToken) WaitTimeout(time.Duration) bool { return true }
func (t *testToken) Done() <-chan struct{}          { return t.done }
func (t *testToken) Error() error                   { return t.err }

type testMqttClient struct {
	mqtt.Client
	err          error
	topics       []string
	payloads     [][]byte
	qos          []byte
	disconnected bool
}

func (c *testMqttClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.topics = append(c.topics, topic)
	c.qos = append(c.qos, qos)
	c.payloads = append(c.payloads, payload.([]byte))
	return newTestToken(c.err)
}

func (c *testMqttClient) Disconnect(uint) {
	c.disconnected = true
}

func TestMqttSend(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		err       error
		wantTopic string
	}{
		{name: "plain topic", topic: "telemetry", wantTopic: "telemetry"},
		{name: "device topic", topic: "devices/{device_id}/cpu", wantTopic: "devices/device_7/cpu"},
		{name: "publish error", topic: "telemetry", err: errors.New("not connected"), wantTopic: "telemetry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Topic = tt.topic
			c := &testMqttClient{err: tt.err}
			f := newMqtt(cfg, c)

			err := f.Send(context.Background(), testRecord)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, []string{tt.wantTopic}, c.topics)
			require.Equal(t, []byte{1}, c.qos)
			require.JSONEq(t, `{"device_id":"device_7","timestamp":1700000000,"cpu":42.5,"rps":300}`, string(c.payloads[0]))

			require.NoError(t, f.Close())
			require.True(t, c.disconnected)
		})
	}
}

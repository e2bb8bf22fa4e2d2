package forward

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/telemetry"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	deviceIDPlaceholder = "{device_id}"
	disconnectQuiesceMs = 250
)

type mqttForwarder struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewMqtt(cfg *config.ForwardConfig) (Forwarder, error) {
	opts := mqtt.NewClientOptions()
	for _, b := range cfg.Brokers {
		opts.AddBroker(b)
	}
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Error("MQTT connection lost.", "error", err)
	})
	if err := applyMqttClientConfig(opts, cfg.ClientConfig); err != nil {
		return nil, err
	}
	tlsCfg, err := tlsConfig(cfg)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}
	return newMqtt(cfg, client), nil
}

func newMqtt(cfg *config.ForwardConfig, client mqtt.Client) *mqttForwarder {
	slog.Info("Creating forwarder.", "type", config.ForwardMqtt, "topic", cfg.Topic, "brokers", cfg.Brokers)
	return &mqttForwarder{client: client, topic: cfg.Topic, qos: cfg.Qos}
}

func formatTopic(pattern, deviceID string) string {
	return strings.ReplaceAll(pattern, deviceIDPlaceholder, deviceID)
}

func (f *mqttForwarder) Send(ctx context.Context, rec telemetry.Record) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	token := f.client.Publish(formatTopic(f.topic, rec.DeviceID), f.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *mqttForwarder) Close() error {
	f.client.Disconnect(disconnectQuiesceMs)
	return nil
}

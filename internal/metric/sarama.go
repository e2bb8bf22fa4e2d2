package metric

import (
	"context"
	"log/slog"
	"sync"

	gometrics "github.com/rcrowley/go-metrics"
	"go.opentelemetry.io/otel"
	otm "go.opentelemetry.io/otel/metric"
)

var percentiles = []float64{0.5, 0.95, 0.99}

// saramaMeters mirrors the sarama metric registry as otel gauges. Gauges are
// created on first sight since the registry gains per-broker entries at
// runtime.
type saramaMeters struct {
	mu     sync.Mutex
	gauges map[string]otm.Float64Gauge
}

func newSaramaMeters() *saramaMeters {
	return &saramaMeters{gauges: make(map[string]otm.Float64Gauge)}
}

func (s *service) RecordSaramaMetrics(registry gometrics.Registry) {
	if s.meters.sarama != nil {
		s.meters.sarama.record(registry)
	}
}

type sample struct {
	suffix string
	value  float64
}

func samples(m any) []sample {
	switch m := m.(type) {
	case gometrics.Counter:
		return []sample{{"", float64(m.Count())}}
	case gometrics.Gauge:
		return []sample{{"", float64(m.Value())}}
	case gometrics.GaugeFloat64:
		return []sample{{"", m.Value()}}
	case gometrics.Histogram:
		h := m.Snapshot()
		ps := h.Percentiles(percentiles)
		return []sample{
			{".count", float64(h.Count())},
			{".min", float64(h.Min())},
			{".max", float64(h.Max())},
			{".mean", h.Mean()},
			{".median", ps[0]},
			{".p95", ps[1]},
			{".p99", ps[2]},
		}
	case gometrics.Meter:
		mt := m.Snapshot()
		return []sample{
			{".count", float64(mt.Count())},
			{".rate.1min", mt.Rate1()},
			{".rate.mean", mt.RateMean()},
		}
	case gometrics.Timer:
		t := m.Snapshot()
		ps := t.Percentiles(percentiles)
		return []sample{
			{".count", float64(t.Count())},
			{".mean", t.Mean()},
			{".median", ps[0]},
			{".p99", ps[2]},
		}
	}
	return nil
}

func (m *saramaMeters) gauge(name string) (otm.Float64Gauge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[name]; ok {
		return g, nil
	}
	g, err := otel.Meter(meterName).Float64Gauge("sarama." + name)
	if err != nil {
		return nil, err
	}
	m.gauges[name] = g
	return g, nil
}

func (m *saramaMeters) record(registry gometrics.Registry) {
	ctx := context.Background()
	registry.Each(func(name string, i interface{}) {
		for _, s := range samples(i) {
			g, err := m.gauge(name + s.suffix)
			if err != nil {
				slog.Error("Failed to create gauge meter.", "name", name+s.suffix, "error", err)
				continue
			}
			g.Record(ctx, s.value)
		}
	})
}

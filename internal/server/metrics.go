package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	statusSuccess  = "success"
	statusError    = "error"
	statusNoDevice = "no_device"
)

type promMetrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	currentRPS *prometheus.GaugeVec
	anomalies  *prometheus.CounterVec
}

func newPromMetrics() *promMetrics {
	m := &promMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_processor_request_total",
			Help: "Total number of stream data points processed.",
		}, []string{"endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stream_processor_request_duration_seconds",
			Help:    "Processing time of requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		currentRPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_processor_current_rps",
			Help: "Requests per second last reported by a device.",
		}, []string{"device_id"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_processor_anomaly_counter",
			Help: "Total cumulative count of detected anomalies.",
		}, []string{"device_id"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.currentRPS,
		m.anomalies,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// middleware observes request duration per matched route.
func (m *promMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}
		timer := prometheus.NewTimer(m.duration.WithLabelValues(route))
		c.Next()
		timer.ObserveDuration()
	}
}

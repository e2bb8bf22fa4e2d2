package metric

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	otm "go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func newHttpMeters() (*httpMeters, error) {
	hm := &httpMeters{}
	if err := createMeters(hm); err != nil {
		return nil, err
	}
	return hm, nil
}

type httpMeters struct {
	RequestSize   otm.Int64Histogram   `name:"streamload.sink.request.size" description:"Measures the size of inbound request bodies." unit:"By"`
	ResponseSize  otm.Int64Histogram   `name:"streamload.sink.response.size" description:"Measures the size of response bodies." unit:"By"`
	ServerLatency otm.Float64Histogram `name:"streamload.sink.latency" description:"Measures the duration of inbound HTTP requests." unit:"ms"`
}

// GinMiddleware records otel measurements for every request handled by the sink.
func GinMiddleware() gin.HandlerFunc {
	m, err := newHttpMeters()
	if err != nil {
		slog.Error("Failed to create http meters. Http metrics will be disabled.", "error", err)
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}
		opts := otm.WithAttributeSet(attribute.NewSet(httpAttributes(c.Request.Method, c.FullPath(), c.Writer.Status())...))
		elapsed := float64(time.Since(start)) / float64(time.Millisecond)

		ctx := c.Request.Context()
		m.RequestSize.Record(ctx, reqSize, opts)
		m.ResponseSize.Record(ctx, respSize, opts)
		m.ServerLatency.Record(ctx, elapsed, opts)
	}
}

func httpAttributes(method, route string, status int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{methodAttribute(method)}
	if route != "" {
		attrs = append(attrs, semconv.HTTPRoute(route))
	}
	if status > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(status))
	}
	return attrs
}

func methodAttribute(method string) attribute.KeyValue {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodDelete, http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPatch, http.MethodPost, http.MethodPut:
	default:
		method = "_OTHER"
	}
	return semconv.HTTPRequestMethodKey.String(method)
}

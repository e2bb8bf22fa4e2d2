package metric

import (
	"context"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.opentelemetry.io/otel/attribute"
	otm "go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func newAttackMeters() (*attackMeters, error) {
	am := &attackMeters{}
	if err := createMeters(am); err != nil {
		return nil, err
	}
	return am, nil
}

type attackMeters struct {
	Latency  otm.Float64Histogram `name:"streamload.attack.latency" description:"Measures the duration of stream task invocations." unit:"ms"`
	Requests otm.Int64Counter     `name:"streamload.attack.requests" description:"Counts stream task invocations." unit:"{request}"`
	BytesOut otm.Int64Counter     `name:"streamload.attack.bytes.out" description:"Counts request body bytes sent." unit:"By"`
	BytesIn  otm.Int64Counter     `name:"streamload.attack.bytes.in" description:"Counts response body bytes received." unit:"By"`
}

func (s *service) RecordAttackResult(ctx context.Context, res *vegeta.Result) {
	if s.meters.attack == nil {
		return
	}
	opts := otm.WithAttributeSet(attribute.NewSet(
		semconv.HTTPResponseStatusCode(int(res.Code)),
		attribute.Bool("success", succeeded(res)),
	))
	elapsed := float64(res.Latency) / float64(time.Millisecond)
	s.meters.attack.Latency.Record(ctx, elapsed, opts)
	s.meters.attack.Requests.Add(ctx, 1, opts)
	s.meters.attack.BytesOut.Add(ctx, int64(res.BytesOut))
	s.meters.attack.BytesIn.Add(ctx, int64(res.BytesIn))
}

// succeeded mirrors vegeta's own success ratio.
func succeeded(res *vegeta.Result) bool {
	return res.Error == "" && res.Code >= 200 && res.Code < 400
}

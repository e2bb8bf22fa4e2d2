package metric

import (
	"context"

	segment "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	otm "go.opentelemetry.io/otel/metric"
)

func newSegmentMeters() (*segmentMeters, error) {
	sm := &segmentMeters{}
	if err := createMeters(sm); err != nil {
		return nil, err
	}
	return sm, nil
}

type segmentMeters struct {
	Writes   otm.Int64Counter `name:"segment.writer.write.count" description:"Number of writes issued by the writer." unit:"{write}"`
	Messages otm.Int64Counter `name:"segment.writer.message.count" description:"Number of messages written." unit:"{message}"`
	Bytes    otm.Int64Counter `name:"segment.writer.message.bytes" description:"Number of message bytes written." unit:"By"`
	Errors   otm.Int64Counter `name:"segment.writer.error.count" description:"Number of failed writes." unit:"{error}"`
	Retries  otm.Int64Counter `name:"segment.writer.retries.count" description:"Number of write retries." unit:"{retry}"`

	WriteTimeAvg otm.Float64Gauge `name:"segment.writer.write.seconds.avg" description:"Average write duration." unit:"s"`
	WriteTimeMax otm.Float64Gauge `name:"segment.writer.write.seconds.max" description:"Maximum write duration." unit:"s"`
	BatchSizeAvg otm.Int64Gauge   `name:"segment.writer.batch.size.avg" description:"Average batch size." unit:"{message}"`
}

// RecordSegmentMetrics takes the deltas returned by kafka.Writer.Stats.
func (s *service) RecordSegmentMetrics(stats segment.WriterStats) {
	m := s.meters.segment
	if m == nil {
		return
	}
	ctx := context.Background()
	opts := otm.WithAttributeSet(attribute.NewSet(attribute.String("topic", stats.Topic)))

	m.Writes.Add(ctx, stats.Writes, opts)
	m.Messages.Add(ctx, stats.Messages, opts)
	m.Bytes.Add(ctx, stats.Bytes, opts)
	m.Errors.Add(ctx, stats.Errors, opts)
	m.Retries.Add(ctx, stats.Retries, opts)

	m.WriteTimeAvg.Record(ctx, stats.WriteTime.Avg.Seconds(), opts)
	m.WriteTimeMax.Record(ctx, stats.WriteTime.Max.Seconds(), opts)
	m.BatchSizeAvg.Record(ctx, stats.BatchSize.Avg, opts)
}

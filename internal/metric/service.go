package metric

import (
	"context"
	"errors"

	"koko/stream-loadgen/internal/config"

	gometrics "github.com/rcrowley/go-metrics"
	segment "github.com/segmentio/kafka-go"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

type Service interface {
	RecordAttackResult(ctx context.Context, res *vegeta.Result)

	RecordSaramaMetrics(registry gometrics.Registry)
	RecordSegmentMetrics(stats segment.WriterStats)

	Config() *config.MetricsConfig
	Shutdown(ctx context.Context) error
}

type service struct {
	cfg      *config.MetricsConfig
	meters   *meters
	provider *sdkmetric.MeterProvider
	conn     *grpc.ClientConn
}

type meters struct {
	attack  *attackMeters
	sarama  *saramaMeters
	segment *segmentMeters
}

func NewService(cfg *config.MetricsConfig) (Service, error) {
	s := &service{cfg: cfg}
	err := s.setup()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *service) setup() error {
	ctx := context.Background()
	if s.cfg.Enabled() && s.cfg.Otel.Endpoint != "" {
		tlsCfg, err := s.cfg.Otel.Tls.LoadTLSConfig()
		if err != nil {
			return err
		}
		cred := insecure.NewCredentials()
		if tlsCfg != nil {
			cred = credentials.NewTLS(tlsCfg)
		}
		conn, err := grpc.NewClient(s.cfg.Otel.Endpoint, grpc.WithTransportCredentials(cred))
		if err != nil {
			return err
		}
		metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
		if err != nil {
			conn.Close()
			return err
		}
		s.conn = conn
		s.provider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(s.cfg.Otel.ExportInterval))),
		)
		otel.SetMeterProvider(s.provider)
	}

	meters := &meters{}
	var err error
	if s.cfg.Enable.Attack {
		if meters.attack, err = newAttackMeters(); err != nil {
			return err
		}
	}
	if s.cfg.Enable.Producer {
		meters.sarama = newSaramaMeters()
		if meters.segment, err = newSegmentMeters(); err != nil {
			return err
		}
	}
	if s.cfg.Enable.Host {
		if err := host.Start(); err != nil {
			return err
		}
	}
	if s.cfg.Enable.Runtime {
		if err := runtime.Start(); err != nil {
			return err
		}
	}
	s.meters = meters
	return nil
}

func (s *service) Config() *config.MetricsConfig {
	return s.cfg
}

// Shutdown flushes pending measurements to the collector.
func (s *service) Shutdown(ctx context.Context) error {
	var errs []error
	if s.provider != nil {
		errs = append(errs, s.provider.Shutdown(ctx))
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}

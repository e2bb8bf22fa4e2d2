package attack

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/metric"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const name = "stream"

// Runner drives a vegeta attack against a single targeter. Each worker acts
// as one simulated user that re-invokes the task as soon as the previous
// invocation returns unless a fixed rate is configured.
type Runner struct {
	cfg     *config.AttackConfig
	tr      vegeta.Targeter
	metrics metric.Service
}

func New(cfg *config.AttackConfig, tr vegeta.Targeter, ms metric.Service) *Runner {
	return &Runner{cfg: cfg, tr: tr, metrics: ms}
}

// Run blocks until the configured duration elapses, the request cap is hit
// or ctx is cancelled. Cancellation is not an error.
func (r *Runner) Run(ctx context.Context) (*vegeta.Metrics, error) {
	opts := []func(*vegeta.Attacker){
		vegeta.Workers(r.cfg.Users),
		vegeta.MaxWorkers(r.cfg.Users),
		vegeta.Timeout(r.cfg.Timeout),
		vegeta.KeepAlive(r.cfg.KeepAlive),
	}
	tlsCfg, err := r.cfg.Tls.LoadTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts = append(opts, vegeta.TLSConfig(tlsCfg))
	}
	attacker := vegeta.NewAttacker(opts...)

	tr := r.tr
	if r.cfg.Requests > 0 {
		tr = limit(tr, r.cfg.Requests)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			slog.Info("Stopping attack.", "reason", ctx.Err())
			attacker.Stop()
		case <-done:
		}
	}()

	slog.Info("Starting attack.",
		"users", r.cfg.Users, "rate", r.cfg.Rate, "duration", r.cfg.Duration, "requests", r.cfg.Requests)
	rate := vegeta.Rate{Freq: r.cfg.Rate, Per: time.Second}
	var m vegeta.Metrics
	for res := range attacker.Attack(tr, rate, r.cfg.Duration, name) {
		if res.Error == vegeta.ErrNoTargets.Error() {
			continue
		}
		m.Add(res)
		r.metrics.RecordAttackResult(ctx, res)
	}
	m.Close()
	slog.Info("Attack finished.", "requests", m.Requests, "success", m.Success)
	return &m, nil
}

// limit stops handing out targets after n invocations.
func limit(tr vegeta.Targeter, n uint64) vegeta.Targeter {
	var count atomic.Uint64
	return func(tgt *vegeta.Target) error {
		if count.Add(1) > n {
			return vegeta.ErrNoTargets
		}
		return tr(tgt)
	}
}

// Report writes vegeta's text report for m.
func Report(w io.Writer, m *vegeta.Metrics) error {
	return vegeta.NewTextReporter(m).Report(w)
}

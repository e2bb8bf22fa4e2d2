package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"koko/stream-loadgen/internal/analytics"
	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/forward"
	"koko/stream-loadgen/internal/metric"
	"koko/stream-loadgen/internal/model"
	"koko/stream-loadgen/internal/store"
	"koko/stream-loadgen/internal/telemetry"
)

const (
	streamPath  = "/stream"
	analyzePath = "/analyze/:device_id"
	statusPath  = "/status"
	metricsPath = "/metrics"

	acceptedMessage = "Data accepted and processing initiated"
	statusOK        = "OK"
	statusNoData    = "No data found."

	persistTimeout = 10 * time.Second
	queueSize      = 1024
)

type Server interface {
	Run() error
	ServeHTTP(w http.ResponseWriter, req *http.Request)
}

type server struct {
	cfg      *config.SinkConfig
	store    store.Store
	detector *analytics.Detector
	fwd      forward.Forwarder
	prom     *promMetrics

	engine *gin.Engine
	srv    *http.Server

	queue     chan telemetry.Record
	done      chan struct{}
	closeOnce sync.Once
}

func NewServer(cfg *config.SinkConfig, st store.Store, d *analytics.Detector, fwd forward.Forwarder, ms metric.Service) Server {
	return newServer(cfg, st, d, fwd, ms)
}

func newServer(cfg *config.SinkConfig, st store.Store, d *analytics.Detector, fwd forward.Forwarder, ms metric.Service) *server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	prom := newPromMetrics()
	engine.Use(prom.middleware())
	if ms.Config().Enable.Http {
		engine.Use(metric.GinMiddleware())
	}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: engine,
	}
	s := &server{
		cfg:      cfg,
		store:    st,
		detector: d,
		fwd:      fwd,
		prom:     prom,
		engine:   engine,
		srv:      srv,
		queue:    make(chan telemetry.Record, queueSize),
		done:     make(chan struct{}),
	}
	s.registerRoutes()
	go s.worker()
	return s
}

func (s *server) registerRoutes() {
	s.engine.POST(streamPath, s.handleStream)
	s.engine.GET(analyzePath, s.handleAnalyze)
	s.engine.GET(statusPath, s.handleStatus)
	s.engine.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(s.prom.registry, promhttp.HandlerOpts{Registry: s.prom.registry})))
	slog.Info("Added endpoints.", "paths", []string{streamPath, analyzePath, statusPath, metricsPath})
}

func (s *server) handleStream(c *gin.Context) {
	var req model.StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		status := statusError
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			status = statusNoDevice
		}
		s.prom.requests.WithLabelValues(streamPath, status).Inc()
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	res := s.detector.Process(req.DeviceID, req.CPU)
	if res.Anomaly {
		s.prom.anomalies.WithLabelValues(req.DeviceID).Inc()
		slog.Warn("Anomaly detected.", "device_id", res.DeviceID, "value", res.Value, "avg", res.Avg, "z_score", res.ZScore)
	}

	s.enqueue(c.Request.Context(), req.Record())

	c.String(http.StatusOK, acceptedMessage)
	s.prom.requests.WithLabelValues(streamPath, statusSuccess).Inc()
	s.prom.currentRPS.WithLabelValues(req.DeviceID).Set(req.RPS)
}

// persist stores the last value and forwards the record. Failures are
// logged only, the client has already been answered.
func (s *server) persist(ctx context.Context, rec telemetry.Record) {
	if err := s.store.Set(ctx, rec.DeviceID, rec.CPU, s.cfg.Store.TTL); err != nil {
		slog.Error("Failed to store value.", "device_id", rec.DeviceID, "error", err)
	}
	if err := s.fwd.Send(ctx, rec); err != nil {
		slog.Error("Failed to forward record.", "device_id", rec.DeviceID, "error", err)
	}
}

// enqueue hands rec to the single persist worker, so store writes and
// forwarded records keep request order.
func (s *server) enqueue(ctx context.Context, rec telemetry.Record) {
	select {
	case s.queue <- rec:
	case <-ctx.Done():
		slog.Warn("Dropped record, request ended before it was queued.", "device_id", rec.DeviceID, "error", ctx.Err())
	}
}

func (s *server) worker() {
	defer close(s.done)
	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		s.persist(ctx, rec)
		cancel()
	}
}

// drain stops accepting records and waits until every queued one is
// persisted. No /stream request may be served afterwards.
func (s *server) drain() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	<-s.done
}

func (s *server) handleAnalyze(c *gin.Context) {
	deviceID := c.Param("device_id")
	last, found, err := s.store.Get(c.Request.Context(), deviceID)
	if err != nil {
		handleStoreError(err, c)
		return
	}
	snap, _ := s.detector.Snapshot(deviceID)
	resp := model.AnalyzeResponse{
		DeviceID:       deviceID,
		RollingAverage: snap.Avg,
		StdDev:         snap.StdDev,
		ZScore:         snap.ZScore,
		AnomalyCount:   snap.AnomalyCount,
		Status:         statusNoData,
	}
	if found {
		resp.LastValue = &last
		resp.Status = statusOK
	}
	c.JSON(http.StatusOK, &resp)
}

func (s *server) handleStatus(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		handleStoreError(err, c)
		return
	}
	c.String(http.StatusOK, "Service is up and store is connected")
}

func handleStoreError(err error, c *gin.Context) {
	if !errors.Is(err, context.Canceled) {
		slog.Error("Store request failed.", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "store unavailable"})
	} else {
		c.Status(499)
	}
}

// Run serves until a termination signal, then persists the records still
// queued.
func (s *server) Run() error {
	slog.Info("Starting sink.", "addr", s.cfg.Addr, "window", s.cfg.Window, "threshold", s.cfg.Threshold)
	err := gracehttp.Serve(s.srv)
	s.drain()
	return err
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.engine.ServeHTTP(w, req)
}

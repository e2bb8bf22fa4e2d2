package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"koko/stream-loadgen/internal/analytics"
	"koko/stream-loadgen/internal/attack"
	"koko/stream-loadgen/internal/config"
	"koko/stream-loadgen/internal/forward"
	"koko/stream-loadgen/internal/metric"
	"koko/stream-loadgen/internal/server"
	"koko/stream-loadgen/internal/store"
	"koko/stream-loadgen/internal/task"
	"koko/stream-loadgen/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	switch os.Args[1] {
	case "attack":
		runAttack(os.Args[2:])
	case "sink":
		runSink(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <attack|sink> [flags]\n", os.Args[0])
}

func runAttack(args []string) {
	fs := pflag.NewFlagSet("attack", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "", "path to the YAML config file")
	target := fs.String("target", "", "base URL of the system under test")
	users := fs.Uint64P("users", "u", 0, "number of concurrent simulated users")
	rate := fs.Int("rate", 0, "fixed requests per second, 0 for no wait time")
	duration := fs.DurationP("duration", "d", 0, "attack duration, 0 to run until interrupted")
	requests := fs.Uint64P("requests", "n", 0, "total number of requests, 0 for unlimited")
	seed := fs.Uint64("seed", 0, "seed for deterministic payloads")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	if fs.Changed("target") {
		cfg.Attack.Target = *target
	}
	if fs.Changed("users") {
		cfg.Attack.Users = *users
	}
	if fs.Changed("rate") {
		cfg.Attack.Rate = *rate
	}
	if fs.Changed("duration") {
		cfg.Attack.Duration = *duration
	}
	if fs.Changed("requests") {
		cfg.Attack.Requests = *requests
	}
	if fs.Changed("seed") {
		cfg.Attack.Seed = seed
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid configuration.", err)
	}

	ms, err := metric.NewService(&cfg.Metrics)
	if err != nil {
		fatal("Failed to create metrics service.", err)
	}

	var genOpts []telemetry.Option
	if cfg.Attack.Seed != nil {
		genOpts = append(genOpts, telemetry.WithSeed(*cfg.Attack.Seed))
	}
	stream, err := task.NewStream(cfg.Attack.Target,
		task.WithPath(cfg.Attack.Path),
		task.WithGenerator(telemetry.NewGenerator(genOpts...)))
	if err != nil {
		fatal("Failed to create stream task.", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Resolved stream target.", "url", stream.URL(), "seeded", cfg.Attack.Seed != nil)
	m, err := attack.New(&cfg.Attack, stream.Targeter(), ms).Run(ctx)
	if err != nil {
		fatal("Attack failed.", err)
	}
	if err := attack.Report(os.Stdout, m); err != nil {
		slog.Error("Failed to write report.", "error", err)
	}
	shutdownMetrics(ms)
}

func runSink(args []string) {
	fs := pflag.NewFlagSet("sink", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "", "path to the YAML config file")
	addr := fs.String("addr", "", "listen address")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	if fs.Changed("addr") {
		cfg.Sink.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid configuration.", err)
	}

	ms, err := metric.NewService(&cfg.Metrics)
	if err != nil {
		fatal("Failed to create metrics service.", err)
	}
	st, err := store.New(&cfg.Sink.Store)
	if err != nil {
		fatal("Failed to create store.", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = st.Ping(pingCtx)
	cancel()
	if err != nil {
		fatal("Could not connect to store.", err)
	}
	slog.Info("Connected to store.", "type", cfg.Sink.Store.Type)

	fwd, err := forward.New(&cfg.Sink.Forward, ms)
	if err != nil {
		fatal("Failed to create forwarder.", err)
	}
	d := analytics.NewDetector(cfg.Sink.Window, cfg.Sink.Threshold)

	s := server.NewServer(&cfg.Sink, st, d, fwd, ms)
	if err := s.Run(); err != nil {
		slog.Error("An error was returned after running the server.", "error", err)
	}
	if err := fwd.Close(); err != nil {
		slog.Error("Failed to close forwarder.", "error", err)
	}
	if err := st.Close(); err != nil {
		slog.Error("Failed to close store.", "error", err)
	}
	shutdownMetrics(ms)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatal("Failed to load configuration.", err)
	}
	return cfg
}

func shutdownMetrics(ms metric.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ms.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down metrics.", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

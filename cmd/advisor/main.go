// Package main is the interactive crop advisor. It reads commands from stdin,
// drives a recommendation session against ADVISOR_API_BASE_URL and renders
// the weather and recommendation cards after every change.
//
// When METRICS_ADDR is set, Prometheus metrics are served on /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cropadvisor/internal/config"
	"cropadvisor/internal/external"
	"cropadvisor/internal/logging"
	"cropadvisor/internal/session"
	"cropadvisor/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg, "advisor")
	logger.Info("crop advisor starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"api", cfg.API.BaseURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runAdvisor(ctx, cfg, os.Stdin, os.Stdout, logger)
}

// runAdvisor wires the session to the console and blocks until the console
// exits.
func runAdvisor(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		stopMetrics := serveMetrics(addr, reg, logger)
		defer stopMetrics()
	}

	client := external.NewAdvisorClient(external.NewHTTPClient(), external.AdvisorClientConfig{
		BaseURL:   cfg.API.BaseURL,
		UserAgent: cfg.API.UserAgent,
		Breaker: external.BreakerSettings{
			ConsecutiveFailures: cfg.API.BreakerConsecutiveFailures,
			OpenTimeout:         cfg.API.BreakerOpenTimeout,
		},
		Logger: logger,
	})

	sess, err := session.New(session.Options{
		Advisor:        client,
		DebounceWindow: cfg.Session.DebounceWindow,
		CityMinLength:  cfg.Session.CityMinLength,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	snapshots, err := sess.Subscribe()
	if err != nil {
		_ = sess.Close()
		return fmt.Errorf("subscribing to session: %w", err)
	}

	ui := newConsole(sess, in, out)
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		ui.Watch(snapshots)
	}()

	runErr := ui.Run(ctx)

	closeErr := sess.Close()
	<-watched
	logger.Info("crop advisor stopped")
	return errors.Join(runErr, closeErr)
}

// serveMetrics exposes reg on addr and returns a function that stops it.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

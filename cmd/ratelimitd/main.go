// Command ratelimitd is an HTTP service that enforces a sliding window rate
// limit per client and reports the remaining quota.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ryhazerus/ratelimit"
	"github.com/ryhazerus/ratelimit/internal/config"
	"github.com/ryhazerus/ratelimit/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ratelimitd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		mp, err := setupMetrics(ctx)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shutdown meter provider", "error", err)
			}
		}()
		metricsHandler = promhttp.Handler()
	}

	backend, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}

	var active store.Store = backend
	if cfg.Metrics.Enabled {
		instrumented, err := store.NewInstrumentedStore(backend)
		if err != nil {
			backend.Close()
			return err
		}
		active = instrumented
	}

	window, err := cfg.Window()
	if err != nil {
		active.Close()
		return err
	}

	limiter := ratelimit.New(window,
		ratelimit.WithStore(active),
		ratelimit.WithPrefix(cfg.Limit.Prefix),
		ratelimit.WithLogger(logger),
	)
	defer limiter.Close()

	policy := ratelimit.FailClosed
	if cfg.Limit.FailOpen {
		policy = ratelimit.FailOpen
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newHandler(limiter, window, policy, cfg.Limit.TrustProxyHeaders),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metricsHandler)
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("Starting metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			"addr", server.Addr,
			"limit", window.String(),
			"store", cfg.Store.Type,
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}
	return server.Shutdown(shutdownCtx)
}

func setupMetrics(ctx context.Context) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("ratelimitd")),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

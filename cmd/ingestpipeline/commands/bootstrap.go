package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/config"
	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/metrics"
)

// bootstrap loads configuration, initializes the logger, telemetry, and
// metrics, and returns a context that is cancelled on SIGINT/SIGTERM. The
// returned shutdown function flushes telemetry and profiling and stops the
// metrics server; it must be deferred by the caller. The returned
// *metrics.Metrics is nil when metrics are disabled, in which case every
// Record call on it is a no-op.
func bootstrap() (context.Context, *config.Config, *metrics.Metrics, func(), error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, nil, nil, &ConfigError{Err: err}
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return nil, nil, nil, nil, &ConfigError{Err: fmt.Errorf("initialize logger: %w", err)}
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Every invocation gets its own run id, carried on ctx so every log
	// line across every stage in this run can be correlated without
	// threading an extra parameter through each stage's Run method.
	runID := uuid.NewString()
	ctx = logger.WithContext(ctx, logger.NewLogContext(runID))

	telemetryShutdown, err := telemetry.Init(ctx, cfg.TelemetryConfig(Version))
	if err != nil {
		cancel()
		return nil, nil, nil, nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilingConfig(Version))
	if err != nil {
		cancel()
		return nil, nil, nil, nil, fmt.Errorf("initialize profiling: %w", err)
	}

	var m *metrics.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "addr", cfg.Metrics.Addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigChan; ok {
			logger.Info("shutdown signal received, cancelling in-flight work")
			cancel()
		}
	}()

	shutdown := func() {
		signal.Stop(sigChan)
		close(sigChan)
		if metricsServer != nil {
			_ = metricsServer.Shutdown(ctx)
		}
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
		cancel()
	}

	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	return ctx, cfg, m, shutdown, nil
}

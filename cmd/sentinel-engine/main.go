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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sentinelstack/device-sentinel/internal/api"
	"github.com/sentinelstack/device-sentinel/internal/config"
	"github.com/sentinelstack/device-sentinel/internal/metrics"
	"github.com/sentinelstack/device-sentinel/internal/services"
	"github.com/sentinelstack/device-sentinel/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting device-sentinel",
		slog.String("mode", cfg.Mode),
		slog.String("device", cfg.Device.Name),
		slog.String("log_path", cfg.Device.LogPath),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	registry, err := services.RegistryFromConfig(cfg.Patterns)
	if err != nil {
		logger.Error("failed to build pattern registry", slog.Any("error", err))
		os.Exit(1)
	}

	service := services.NewSessionService(logger, cfg, registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := api.NewServer(cfg.Server, service)
	if err != nil {
		logger.Error("failed to create status server", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		logger.Info("status server listening", slog.String("address", cfg.Server.Address))
		if serveErr := server.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("status server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	exitCode := run(ctx, logger, cfg, service)

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	server.Shutdown(shutdownCtx)
	cancel()

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("device-sentinel stopped")
	os.Exit(exitCode)
}

// run dispatches the configured session mode. Record and compare run a
// single window; watch repeats sessions until interrupted. Compare
// propagates its verdict through the exit code so automated runners can
// treat the process as a pass/fail step.
func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, service *services.SessionService) int {
	switch cfg.Mode {
	case config.ModeRecord:
		if _, err := service.RunRecord(ctx); err != nil {
			logger.Error("record session failed", slog.Any("error", err))
			return 1
		}
		return 0

	case config.ModeCompare:
		report, err := service.RunCompare(ctx)
		if err != nil {
			logger.Error("compare session failed", slog.Any("error", err))
			return 1
		}
		if !report.Passed {
			logger.Warn("comparison found anomalies", slog.Int("count", report.AnomalyCount))
			return 1
		}
		return 0

	default: // config.ModeWatch
		for {
			if _, err := service.RunWatch(ctx); err != nil {
				logger.Error("watch session failed", slog.Any("error", err))
				return 1
			}
			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
				return 0
			default:
				// Unbounded watches only return on cancellation;
				// bounded ones roll straight into the next session.
			}
		}
	}
}

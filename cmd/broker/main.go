// Command broker runs the pub/sub topic broker: a TCP listener accepting
// JSON/XML/binary framed connections, and an HTTP side-channel serving
// Prometheus metrics and a liveness probe.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adred-codev/topicbroker/internal/broker"
	"github.com/adred-codev/topicbroker/internal/config"
	"github.com/adred-codev/topicbroker/internal/limits"
	"github.com/adred-codev/topicbroker/internal/monitoring"
	"github.com/adred-codev/topicbroker/internal/transport"
	_ "go.uber.org/automaxprocs"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := monitoring.NewLogger(monitoring.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.Log(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitoring.BrokerMetrics{}
	engine := broker.New(logger, metrics)
	go engine.Run(ctx)

	guard := limits.NewResourceGuard(limits.ResourceGuardConfig{
		MaxConnections:     cfg.MaxConnections,
		CPURejectThreshold: cfg.CPURejectThreshold,
		PollInterval:       cfg.ResourcePollInterval,
	}, logger)
	guard.StartMonitoring(ctx)

	srv := transport.NewServer(transport.Config{
		Addr:          cfg.Addr,
		ListenBacklog: cfg.ListenBacklog,
		RateLimit: limits.FrameLimiterConfig{
			RatePerSecond: float64(cfg.FrameRateLimit),
			Burst:         cfg.FrameBurst,
		},
		DrainGracePeriod: cfg.DrainGracePeriod,
	}, engine, guard, metrics, logger)

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("failed to start transport: %v", err)
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: monitoring.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	logger.Info().Str("addr", cfg.Addr).Str("metrics_addr", cfg.MetricsAddr).Msg("broker started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DrainGracePeriod+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during transport shutdown")
	}

	metricsShutdownCtx, metricsCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer metricsCancel()
	if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during metrics server shutdown")
	}

	cancel()
	logger.Info().Msg("broker stopped")
}

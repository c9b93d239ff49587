// cmd/agent-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"finance-agent/internal/agent/intent"
	"finance-agent/internal/agent/ratelimit"
	"finance-agent/internal/common/config"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/observability"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting agent server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	if cfg.Tracing.Enabled {
		tracing, err := observability.NewTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			zapLog.Warn("tracing disabled", zap.Error(err))
		} else {
			obs.WithTracing(tracing)
		}
	}
	defer obs.Shutdown()

	ctx := context.Background()

	app, err := build(ctx, cfg, log, zapLog, obs)
	if err != nil {
		zapLog.Fatal("agent initialization failed", zap.Error(err))
	}
	defer app.close()

	// --- Hot reload of thresholds and rate limits ---
	config.Watch(func(next *config.Config) {
		app.classifier.SetThresholds(intent.ThresholdsFromConfig(next.Agent.Classifier))
		app.limiter.SetClasses(ratelimit.ClassesFromConfig(next.Agent.RateLimits))
		zapLog.Info("Configuration reloaded",
			zap.Float64("confidenceFloor", next.Agent.Classifier.ConfidenceFloor),
			zap.Int("rateLimitClasses", len(next.Agent.RateLimits)),
		)
	}, func(err error) {
		zapLog.Error("Configuration reload rejected", zap.Error(err))
	})

	app.scheduler.Start()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      app.api.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	app.scheduler.Stop(shutdownCtx)
	if err := app.batches.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Batch jobs did not stop in time", zap.Error(err))
	}

	zapLog.Info("Agent server stopped gracefully")
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/zeroalloc/internal/app"
	"github.com/allisson/zeroalloc/internal/audit"
	"github.com/allisson/zeroalloc/internal/memory"
	"github.com/allisson/zeroalloc/internal/metrics"
	"github.com/allisson/zeroalloc/internal/stress"
)

// RunServe starts the metrics server and runs stress rounds against the
// zero-on-free allocator every interval until SIGINT/SIGTERM.
func RunServe(ctx context.Context, version string, interval time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting audit server", slog.String("version", version))

	defer closeContainer(container, logger)

	allocator, err := container.Allocator()
	if err != nil {
		return fmt.Errorf("failed to initialize allocator: %w", err)
	}
	auditor, err := container.Auditor()
	if err != nil {
		return fmt.Errorf("failed to initialize auditor: %w", err)
	}
	allocatorMetrics, err := container.AllocatorMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize allocator metrics: %w", err)
	}
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- RunStressLoop(
			ctx,
			container.StressRunner(),
			allocator,
			auditor,
			allocatorMetrics,
			cfg.AllocatorBackend,
			logger,
			interval,
		)
	}()

	var runErr error
	loopDone := false
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = err
	case err := <-loopErr:
		runErr = err
		loopDone = true
	}
	cancel()

	// the loop notices cancellation between cycles
	if !loopDone {
		runErr = errors.Join(runErr, <-loopErr)
	}

	// the deferred closeContainer stops the metrics server
	if runErr != nil {
		return runErr
	}
	logger.Info("audit server stopping")
	return nil
}

// RunStressLoop runs one stress round per interval, logging each round's
// verdict and recording its duration, until ctx is done. A failed verdict is
// logged, not returned; only allocator errors end the loop early.
func RunStressLoop(
	ctx context.Context,
	runner *stress.Runner,
	allocator memory.Allocator,
	auditor *audit.Auditor,
	allocatorMetrics metrics.AllocatorMetrics,
	backend string,
	logger *slog.Logger,
	interval time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		if err := runStressRound(ctx, runner, allocator, auditor, allocatorMetrics, backend, logger, round); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runStressRound(
	ctx context.Context,
	runner *stress.Runner,
	allocator memory.Allocator,
	auditor *audit.Auditor,
	allocatorMetrics metrics.AllocatorMetrics,
	backend string,
	logger *slog.Logger,
	round int,
) error {
	auditor.Clear()

	start := time.Now()
	report, err := runner.Run(ctx, allocator)
	if err != nil {
		allocatorMetrics.RecordDuration(ctx, backend, metrics.OpStressRound, time.Since(start), metrics.StatusError)
		return fmt.Errorf("stress round %d: %w", round, err)
	}

	allZeroed := auditor.VerifyAllZeroed()
	status := metrics.StatusSuccess
	if !allZeroed {
		status = metrics.StatusError
	}
	allocatorMetrics.RecordDuration(ctx, backend, metrics.OpStressRound, report.Duration, status)

	attrs := []any{
		slog.Int("round", round),
		slog.String("run_id", report.RunID),
		slog.Int64("operations", report.Operations),
		slog.Uint64("free_count", auditor.FreeCount()),
		slog.Bool("all_zeroed", allZeroed),
	}
	if allZeroed {
		logger.Info("stress round passed", attrs...)
	} else {
		logger.Error("stress round failed: freed memory was not zeroed", attrs...)
	}
	return nil
}

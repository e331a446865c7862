package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/zeroalloc/internal/app"
	"github.com/allisson/zeroalloc/internal/audit"
	apperrors "github.com/allisson/zeroalloc/internal/errors"
	"github.com/allisson/zeroalloc/internal/memory"
	"github.com/allisson/zeroalloc/internal/stress"
)

// AuditOptions overrides configuration for a single audit run. Zero values keep
// the configured settings.
type AuditOptions struct {
	Raw        bool
	Workers    int
	Iterations int
	Format     string
}

// RunAuditCommand loads configuration, builds the allocator chain and runs one
// self-audit. With Raw set the stress workload talks to the auditor directly,
// skipping the zero-on-free layer, and the audit is expected to fail.
func RunAuditCommand(ctx context.Context, opts AuditOptions, writer io.Writer) error {
	if err := validateFormat(opts.Format); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.Workers > 0 {
		cfg.StressWorkers = opts.Workers
	}
	if opts.Iterations > 0 {
		cfg.StressIterations = opts.Iterations
	}

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	auditor, err := container.Auditor()
	if err != nil {
		return fmt.Errorf("failed to initialize auditor: %w", err)
	}

	var allocator memory.Allocator = auditor
	if !opts.Raw {
		allocator, err = container.Allocator()
		if err != nil {
			return fmt.Errorf("failed to initialize allocator: %w", err)
		}
	}

	return RunAudit(ctx, container.StressRunner(), allocator, auditor, logger, writer, opts.Format)
}

// RunAudit clears the auditor, drives allocator with the stress workload and
// reports whether every recorded free was zeroed. allocator must forward its
// frees to auditor. Returns an error wrapping ErrNotZeroed when verification fails.
func RunAudit(
	ctx context.Context,
	runner *stress.Runner,
	allocator memory.Allocator,
	auditor *audit.Auditor,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	auditor.Clear()

	logger.Info("running allocator audit",
		slog.Int("workers", runner.Workers),
		slog.Int("iterations", runner.Iterations),
		slog.Int("max_size", runner.MaxSize),
	)

	report, err := runner.Run(ctx, allocator)
	if err != nil {
		return fmt.Errorf("stress run failed: %w", err)
	}

	allZeroed := auditor.VerifyAllZeroed()

	if format == FormatJSON {
		if err := outputAuditJSON(writer, report, auditor, allZeroed); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		outputAuditText(writer, report, auditor, allZeroed)
	}

	logger.Info("audit completed",
		slog.String("run_id", report.RunID),
		slog.Int64("operations", report.Operations),
		slog.Uint64("free_count", auditor.FreeCount()),
		slog.Bool("all_zeroed", allZeroed),
	)

	if !allZeroed {
		return fmt.Errorf("audit %s: %w", report.RunID, apperrors.ErrNotZeroed)
	}
	return nil
}

// outputAuditText outputs the audit result in human-readable text format.
func outputAuditText(writer io.Writer, report *stress.Report, auditor *audit.Auditor, allZeroed bool) {
	_, _ = fmt.Fprintf(writer, "Allocator Zeroing Audit\n")
	_, _ = fmt.Fprintf(writer, "=======================\n\n")
	_, _ = fmt.Fprintf(writer, "Run ID:      %s\n", report.RunID)
	_, _ = fmt.Fprintf(writer, "Workers:     %d\n", report.Workers)
	_, _ = fmt.Fprintf(writer, "Operations:  %d\n", report.Operations)
	_, _ = fmt.Fprintf(writer, "Bytes:       %d\n", report.Bytes)
	_, _ = fmt.Fprintf(writer, "Duration:    %s\n", report.Duration)
	_, _ = fmt.Fprintf(writer, "Frees:       %d (window %d)\n\n", auditor.FreeCount(), auditor.Capacity())

	if allZeroed {
		_, _ = fmt.Fprintf(writer, "Status: PASSED\n")
	} else {
		_, _ = fmt.Fprintf(writer, "Status: FAILED (freed memory was not zeroed)\n")
	}
}

// outputAuditJSON outputs the audit result in JSON format for machine consumption.
func outputAuditJSON(writer io.Writer, report *stress.Report, auditor *audit.Auditor, allZeroed bool) error {
	result := map[string]interface{}{
		"run_id":     report.RunID,
		"workers":    report.Workers,
		"operations": report.Operations,
		"bytes":      report.Bytes,
		"duration":   report.Duration.String(),
		"free_count": auditor.FreeCount(),
		"capacity":   auditor.Capacity(),
		"all_zeroed": allZeroed,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}

// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/zeroalloc/internal/app"
	"github.com/allisson/zeroalloc/internal/config"
	apperrors "github.com/allisson/zeroalloc/internal/errors"
)

// Output formats accepted by the --format flag.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// loadConfig loads and validates the configuration from the environment.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// shutdownTimeout bounds the graceful shutdown of the container's servers.
const shutdownTimeout = 10 * time.Second

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := container.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// validateFormat rejects anything other than text or json.
func validateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON:
		return nil
	default:
		return fmt.Errorf("%w: invalid format %q (valid options: text, json)", apperrors.ErrInvalidInput, format)
	}
}

// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/allisson/zeroalloc/internal/audit"
	"github.com/allisson/zeroalloc/internal/config"
	"github.com/allisson/zeroalloc/internal/http"
	"github.com/allisson/zeroalloc/internal/memory"
	"github.com/allisson/zeroalloc/internal/metrics"
	"github.com/allisson/zeroalloc/internal/stress"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
//
// The allocator chain it builds is, from the outside in:
// ZeroOnFree -> Auditor -> (InstrumentedAllocator ->) backend.
type Container struct {
	config *config.Config

	// Infrastructure
	logger            *slog.Logger
	metricsProvider   *metrics.Provider
	allocatorMetrics  metrics.AllocatorMetrics
	auditRegistration metric.Registration

	// Allocators
	backend   memory.Allocator
	auditor   *audit.Auditor
	allocator memory.Allocator

	// Servers
	metricsServer *http.MetricsServer

	mu                   sync.Mutex
	loggerInit           sync.Once
	metricsProviderInit  sync.Once
	allocatorMetricsInit sync.Once
	backendInit          sync.Once
	auditorInit          sync.Once
	allocatorInit        sync.Once
	metricsServerInit    sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// once runs init under guard and remembers its error for later calls.
func (c *Container) once(guard *sync.Once, name string, init func() error) error {
	guard.Do(func() {
		if err := init(); err != nil {
			c.mu.Lock()
			c.initErrors[name] = err
			c.mu.Unlock()
		}
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	err := c.once(&c.metricsProviderInit, "metricsProvider", func() error {
		if !c.config.MetricsEnabled {
			return nil
		}
		provider, err := metrics.NewProvider()
		if err != nil {
			return err
		}
		c.metricsProvider = provider
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// AllocatorMetrics returns the allocator metrics recorder. It is a no-op
// recorder when metrics are disabled.
func (c *Container) AllocatorMetrics() (metrics.AllocatorMetrics, error) {
	err := c.once(&c.allocatorMetricsInit, "allocatorMetrics", func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			c.allocatorMetrics = metrics.NewNoOpAllocatorMetrics()
			return nil
		}
		m, err := metrics.NewAllocatorMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create allocator metrics: %w", err)
		}
		c.allocatorMetrics = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.allocatorMetrics, nil
}

// Backend returns the allocator selected by ALLOCATOR_BACKEND, instrumented
// when metrics are enabled.
func (c *Container) Backend() (memory.Allocator, error) {
	err := c.once(&c.backendInit, "backend", func() error {
		backend, err := c.initBackend()
		if err != nil {
			return err
		}
		if c.config.MetricsEnabled {
			m, err := c.AllocatorMetrics()
			if err != nil {
				return err
			}
			backend = metrics.InstrumentAllocator(backend, m, c.config.AllocatorBackend)
		}
		c.backend = backend
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.backend, nil
}

// Auditor returns the auditor sitting directly above the backend.
func (c *Container) Auditor() (*audit.Auditor, error) {
	err := c.once(&c.auditorInit, "auditor", func() error {
		backend, err := c.Backend()
		if err != nil {
			return err
		}
		aud, err := audit.New(backend, c.config.AuditCapacity)
		if err != nil {
			return fmt.Errorf("failed to create auditor: %w", err)
		}

		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider != nil {
			reg, err := metrics.RegisterAuditor(provider.MeterProvider(), c.config.MetricsNamespace, aud)
			if err != nil {
				return fmt.Errorf("failed to register audit metrics: %w", err)
			}
			c.auditRegistration = reg
		}

		c.auditor = aud
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.auditor, nil
}

// Allocator returns the zero-on-free allocator over the audited backend.
func (c *Container) Allocator() (memory.Allocator, error) {
	err := c.once(&c.allocatorInit, "allocator", func() error {
		aud, err := c.Auditor()
		if err != nil {
			return err
		}
		c.allocator = memory.NewZeroOnFree(aud)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.allocator, nil
}

// StressRunner returns a stress runner configured from STRESS_* settings.
func (c *Container) StressRunner() *stress.Runner {
	r := stress.NewRunner(
		c.config.StressWorkers,
		c.config.StressIterations,
		c.config.StressMaxSize,
		c.config.StressRateLimit,
	)
	if c.config.StressMaxAlign > 0 {
		r.MaxAlign = c.config.StressMaxAlign
	}
	return r
}

// MetricsServer returns the metrics and audit HTTP server.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	err := c.once(&c.metricsServerInit, "metricsServer", func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		aud, err := c.Auditor()
		if err != nil {
			return err
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.MetricsHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
			c.config.MetricsNamespace,
			aud,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown releases every initialized component.
func (c *Container) Shutdown(ctx context.Context) error {
	var shutdownErrors []error

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.auditRegistration != nil {
		if err := c.auditRegistration.Unregister(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("audit metrics unregister: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initBackend creates the allocator named by the configuration.
func (c *Container) initBackend() (memory.Allocator, error) {
	switch c.config.AllocatorBackend {
	case config.BackendGo:
		return memory.NewGoAllocator(), nil
	case config.BackendPage:
		return memory.NewPageAllocator(), nil
	case config.BackendGuarded:
		return memory.NewGuardedAllocator(), nil
	default:
		return nil, fmt.Errorf("unknown allocator backend %q", c.config.AllocatorBackend)
	}
}

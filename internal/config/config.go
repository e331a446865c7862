// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"

	"github.com/allisson/go-env"
	validation "github.com/jellydator/validation"
	"github.com/joho/godotenv"

	customValidation "github.com/allisson/zeroalloc/internal/validation"
)

// Allocator backends selectable with ALLOCATOR_BACKEND.
const (
	BackendGo      = "go"
	BackendPage    = "page"
	BackendGuarded = "guarded"
)

// Config holds all application configuration.
type Config struct {
	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// AllocatorBackend selects the allocator under the zero-on-free wrapper
	// ("go", "page" or "guarded").
	AllocatorBackend string
	// AuditCapacity is the number of most recent frees the auditor remembers.
	AuditCapacity int

	// StressWorkers is the number of goroutines a stress run uses.
	StressWorkers int
	// StressIterations is the number of allocate/write/free cycles per worker.
	StressIterations int
	// StressMaxSize is the largest block a stress run requests, in bytes.
	StressMaxSize int
	// StressMaxAlign is the largest alignment a stress run requests; a power of two.
	StressMaxAlign int
	// StressRateLimit caps stress operations per second across all workers; 0 disables it.
	StressRateLimit float64

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsHost is the host address the metrics server binds to.
	MetricsHost string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Allocator
		AllocatorBackend: env.GetString("ALLOCATOR_BACKEND", BackendGo),
		AuditCapacity:    env.GetInt("ZEROALLOC_AUDIT_CAPACITY", 2048),

		// Stress workload
		StressWorkers:    env.GetInt("STRESS_WORKERS", 4),
		StressIterations: env.GetInt("STRESS_ITERATIONS", 10000),
		StressMaxSize:    env.GetInt("STRESS_MAX_SIZE", 4096),
		StressMaxAlign:   env.GetInt("STRESS_MAX_ALIGN", 64),
		StressRateLimit:  env.GetFloat64("STRESS_RATE_LIMIT", 0),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "zeroalloc"),
		MetricsHost:      env.GetString("METRICS_HOST", "0.0.0.0"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),
	}
}

// Validate checks the configuration and returns an error wrapping
// ErrInvalidInput that lists every offending field.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.AllocatorBackend,
			validation.Required,
			validation.In(BackendGo, BackendPage, BackendGuarded),
		),
		validation.Field(&c.AuditCapacity, validation.Required, validation.Min(1)),
		validation.Field(&c.StressWorkers, validation.Required, validation.Min(1)),
		validation.Field(&c.StressIterations, validation.Required, validation.Min(1)),
		validation.Field(&c.StressMaxSize, validation.Required, validation.Min(1)),
		validation.Field(&c.StressMaxAlign, customValidation.PowerOfTwo),
		validation.Field(&c.StressRateLimit, validation.Min(0.0)),
		validation.Field(&c.MetricsNamespace,
			validation.When(c.MetricsEnabled, validation.Required, customValidation.MetricName),
		),
		validation.Field(&c.MetricsHost,
			validation.When(c.MetricsEnabled, validation.Required, customValidation.NotBlank, customValidation.NoWhitespace),
		),
		validation.Field(&c.MetricsPort,
			validation.When(c.MetricsEnabled, validation.Required, validation.Min(1), validation.Max(65535)),
		),
	)
	return customValidation.WrapValidationError(err)
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	if c.LogLevel == "debug" {
		return "debug"
	}
	return "release"
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}

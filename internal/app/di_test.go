package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/zeroalloc/internal/config"
	"github.com/allisson/zeroalloc/internal/memory"
	"github.com/allisson/zeroalloc/internal/metrics"
)

func testConfig(backend string, metricsEnabled bool) *config.Config {
	return &config.Config{
		LogLevel:         "error",
		AllocatorBackend: backend,
		AuditCapacity:    64,
		StressWorkers:    2,
		StressIterations: 25,
		StressMaxSize:    256,
		StressMaxAlign:   32,
		MetricsEnabled:   metricsEnabled,
		MetricsNamespace: "di_test",
		MetricsHost:      "127.0.0.1",
		MetricsPort:      0,
	}
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig(config.BackendGo, false)
	container := NewContainer(cfg)

	require.NotNil(t, container)
	assert.Same(t, cfg, container.Config())
}

func TestContainerLogger(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "debug"})

	assert.Nil(t, container.logger)
	logger := container.Logger()
	require.NotNil(t, logger)
	assert.Same(t, logger, container.Logger())

	assert.NotNil(t, NewContainer(&config.Config{LogLevel: "invalid"}).Logger())
}

func TestContainerAllocatorChain(t *testing.T) {
	container := NewContainer(testConfig(config.BackendGo, false))

	a, err := container.Allocator()
	require.NoError(t, err)
	z, ok := a.(*memory.ZeroOnFree)
	require.True(t, ok)

	aud, err := container.Auditor()
	require.NoError(t, err)
	assert.Same(t, aud, z.Inner())
	assert.Equal(t, 64, aud.Capacity())

	backend, err := container.Backend()
	require.NoError(t, err)
	assert.IsType(t, &memory.GoAllocator{}, backend)

	l := memory.LayoutOf(16)
	b, err := a.Allocate(l)
	require.NoError(t, err)
	copy(b, "0123456789abcdef")
	a.Deallocate(b, l)

	assert.Equal(t, uint64(1), aud.FreeCount())
	assert.True(t, aud.VerifyAllZeroed())
}

func TestContainerBackends(t *testing.T) {
	t.Run("page", func(t *testing.T) {
		backend, err := NewContainer(testConfig(config.BackendPage, false)).Backend()
		require.NoError(t, err)
		assert.IsType(t, &memory.PageAllocator{}, backend)
	})

	t.Run("guarded", func(t *testing.T) {
		backend, err := NewContainer(testConfig(config.BackendGuarded, false)).Backend()
		require.NoError(t, err)
		assert.IsType(t, &memory.GuardedAllocator{}, backend)
	})

	t.Run("instrumented when metrics enabled", func(t *testing.T) {
		container := NewContainer(testConfig(config.BackendGo, true))
		defer func() {
			assert.NoError(t, container.Shutdown(context.Background()))
		}()

		backend, err := container.Backend()
		require.NoError(t, err)
		assert.IsType(t, &metrics.InstrumentedAllocator{}, backend)
	})

	t.Run("unknown backend", func(t *testing.T) {
		container := NewContainer(testConfig("tcmalloc", false))

		_, err := container.Allocator()
		require.Error(t, err)

		// The first failure is remembered.
		_, err = container.Backend()
		assert.ErrorContains(t, err, "tcmalloc")
	})

	t.Run("empty backend", func(t *testing.T) {
		cfg := testConfig("", false)
		require.Error(t, cfg.Validate())

		_, err := NewContainer(cfg).Backend()
		assert.ErrorContains(t, err, "unknown allocator backend")
	})
}

func TestContainerMetrics(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		container := NewContainer(testConfig(config.BackendGo, false))

		provider, err := container.MetricsProvider()
		require.NoError(t, err)
		assert.Nil(t, provider)

		m, err := container.AllocatorMetrics()
		require.NoError(t, err)
		assert.IsType(t, &metrics.NoOpAllocatorMetrics{}, m)
	})

	t.Run("enabled", func(t *testing.T) {
		container := NewContainer(testConfig(config.BackendGo, true))
		defer func() {
			assert.NoError(t, container.Shutdown(context.Background()))
		}()

		provider, err := container.MetricsProvider()
		require.NoError(t, err)
		assert.NotNil(t, provider)

		_, err = container.Auditor()
		require.NoError(t, err)
		assert.NotNil(t, container.auditRegistration)
	})
}

func TestContainerStressRunner(t *testing.T) {
	container := NewContainer(testConfig(config.BackendGo, false))

	r := container.StressRunner()
	assert.Equal(t, 2, r.Workers)
	assert.Equal(t, 25, r.Iterations)
	assert.Equal(t, 256, r.MaxSize)
	assert.Equal(t, 32, r.MaxAlign)

	a, err := container.Allocator()
	require.NoError(t, err)
	report, err := r.Run(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(50), report.Operations)

	aud, err := container.Auditor()
	require.NoError(t, err)
	assert.True(t, aud.VerifyAllZeroed())
}

func TestContainerMetricsServer(t *testing.T) {
	container := NewContainer(testConfig(config.BackendGo, true))
	defer func() {
		assert.NoError(t, container.Shutdown(context.Background()))
	}()

	server, err := container.MetricsServer()
	require.NoError(t, err)
	assert.NotNil(t, server.GetHandler())

	again, err := container.MetricsServer()
	require.NoError(t, err)
	assert.Same(t, server, again)
}

func TestContainerShutdown(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "info"})
	assert.NoError(t, container.Shutdown(context.TODO()))
}

func TestContainerShutdown_AfterServerShutdown(t *testing.T) {
	container := NewContainer(testConfig(config.BackendGo, false))

	server, err := container.MetricsServer()
	require.NoError(t, err)
	require.NoError(t, server.Shutdown(context.Background()))

	assert.NoError(t, container.Shutdown(context.Background()))
	assert.NoError(t, container.Shutdown(context.Background()))
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/zeroalloc/internal/audit"
	"github.com/allisson/zeroalloc/internal/httputil"
	"github.com/allisson/zeroalloc/internal/memory"
	"github.com/allisson/zeroalloc/internal/metrics"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestMetricsServer_Health(t *testing.T) {
	s := NewMetricsServer("localhost", 8081, discardLogger(), nil, "test_app", nil)

	w := get(t, s.GetHandler(), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestMetricsServer_Audit(t *testing.T) {
	aud, err := audit.New(memory.NewGoAllocator(), 32)
	require.NoError(t, err)
	s := NewMetricsServer("localhost", 8081, discardLogger(), nil, "test_app", aud)

	t.Run("Success_AllZeroed", func(t *testing.T) {
		z := memory.NewZeroOnFree(aud)
		l := memory.LayoutOf(4)
		b, err := z.Allocate(l)
		require.NoError(t, err)
		copy(b, "key!")
		z.Deallocate(b, l)

		w := get(t, s.GetHandler(), "/audit")

		assert.Equal(t, http.StatusOK, w.Code)
		var status AuditStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, AuditStatus{FreeCount: 1, Capacity: 32, AllZeroed: true}, status)
	})

	t.Run("Success_ResidueReported", func(t *testing.T) {
		l := memory.LayoutOf(4)
		b, err := aud.Allocate(l)
		require.NoError(t, err)
		copy(b, "key!")
		aud.Deallocate(b, l)

		w := get(t, s.GetHandler(), "/audit")

		var status AuditStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, uint64(2), status.FreeCount)
		assert.False(t, status.AllZeroed)
	})

	t.Run("Error_NoAuditor", func(t *testing.T) {
		s := NewMetricsServer("localhost", 8081, discardLogger(), nil, "test_app", nil)
		w := get(t, s.GetHandler(), "/audit")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestMetricsServer_AuditVerify(t *testing.T) {
	aud, err := audit.New(memory.NewGoAllocator(), 32)
	require.NoError(t, err)
	s := NewMetricsServer("localhost", 8081, discardLogger(), nil, "test_app", aud)
	l := memory.LayoutOf(4)

	t.Run("Success_Zeroed", func(t *testing.T) {
		z := memory.NewZeroOnFree(aud)
		b, err := z.Allocate(l)
		require.NoError(t, err)
		copy(b, "key!")
		z.Deallocate(b, l)

		w := get(t, s.GetHandler(), "/audit/verify")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"zeroed"}`, w.Body.String())
	})

	t.Run("Error_NotZeroed", func(t *testing.T) {
		b, err := aud.Allocate(l)
		require.NoError(t, err)
		copy(b, "key!")
		aud.Deallocate(b, l)

		w := get(t, s.GetHandler(), "/audit/verify")

		assert.Equal(t, http.StatusConflict, w.Code)
		var response httputil.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "not_zeroed", response.Error)
	})

	t.Run("Success_AfterClear", func(t *testing.T) {
		aud.Clear()
		assert.Equal(t, http.StatusOK, get(t, s.GetHandler(), "/audit/verify").Code)
	})

	t.Run("Error_NoAuditor", func(t *testing.T) {
		s := NewMetricsServer("localhost", 8081, discardLogger(), nil, "test_app", nil)
		assert.Equal(t, http.StatusServiceUnavailable, get(t, s.GetHandler(), "/audit/verify").Code)
	})
}

func TestMetricsServer_Metrics(t *testing.T) {
	provider, err := metrics.NewProvider()
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	s := NewMetricsServer("localhost", 8081, discardLogger(), provider, "srv_test", nil)
	assert.Equal(t, http.StatusOK, get(t, s.GetHandler(), "/health").Code)

	w := get(t, s.GetHandler(), "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "srv_test_http_requests_total")
}

func TestMetricsServer_NoMetricsRoute(t *testing.T) {
	s := NewMetricsServer("localhost", 8081, discardLogger(), nil, "test_app", nil)
	assert.Equal(t, http.StatusNotFound, get(t, s.GetHandler(), "/metrics").Code)
}

func TestCustomLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewMetricsServer("localhost", 8081, logger, nil, "test_app", nil)

	w := get(t, s.GetHandler(), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/health", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.NotEmpty(t, entry["request_id"])
	assert.Equal(t, w.Header().Get("X-Request-ID"), entry["request_id"])
}

func TestMetricsServer_ShutdownIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewMetricsServer("localhost", 0, logger, nil, "test_app", nil)

	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))

	assert.Equal(t, 1, strings.Count(buf.String(), "shutting down metrics server"))
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := get(t, router, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

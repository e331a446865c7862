package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/zeroalloc/internal/audit"
	apperrors "github.com/allisson/zeroalloc/internal/errors"
	"github.com/allisson/zeroalloc/internal/httputil"
	"github.com/allisson/zeroalloc/internal/metrics"
)

// AuditStatus is the body of GET /audit.
type AuditStatus struct {
	FreeCount uint64 `json:"free_count"`
	Capacity  int    `json:"capacity"`
	AllZeroed bool   `json:"all_zeroed"`
}

// MetricsServer represents the HTTP server for metrics and audit status.
type MetricsServer struct {
	server  *http.Server
	logger  *slog.Logger
	auditor *audit.Auditor

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewMetricsServer creates a new MetricsServer. A nil metricsProvider disables
// /metrics and a nil auditor makes /audit and /audit/verify report 503.
func NewMetricsServer(
	host string,
	port int,
	logger *slog.Logger,
	metricsProvider *metrics.Provider,
	namespace string,
	auditor *audit.Auditor,
) *MetricsServer {
	s := &MetricsServer{
		logger:  logger,
		auditor: auditor,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), namespace))
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}
	router.GET("/health", s.healthHandler)
	router.GET("/audit", s.auditHandler)
	router.GET("/audit/verify", s.verifyHandler)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// GetHandler returns the http.Handler for testing purposes.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the metrics HTTP server and blocks until it stops.
func (s *MetricsServer) Start(ctx context.Context) error {
	s.logger.Info("starting metrics server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics HTTP server. Later calls return the
// result of the first.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutting down metrics server")
		s.shutdownErr = s.server.Shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *MetricsServer) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *MetricsServer) auditHandler(c *gin.Context) {
	if s.auditor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auditor not configured"})
		return
	}
	c.JSON(http.StatusOK, AuditStatus{
		FreeCount: s.auditor.FreeCount(),
		Capacity:  s.auditor.Capacity(),
		AllZeroed: s.auditor.VerifyAllZeroed(),
	})
}

// verifyHandler answers 200 when every recorded free was zeroed and 409 otherwise,
// so it can back a readiness probe.
func (s *MetricsServer) verifyHandler(c *gin.Context) {
	if s.auditor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auditor not configured"})
		return
	}
	if !s.auditor.VerifyAllZeroed() {
		err := fmt.Errorf("%d frees recorded: %w", s.auditor.FreeCount(), apperrors.ErrNotZeroed)
		httputil.HandleErrorGin(c, err, s.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "zeroed"})
}

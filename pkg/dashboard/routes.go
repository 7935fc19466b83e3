// Package dashboard serves the upload queue and the report table over a
// local JSON API, for browser front ends and scripts driving `viq serve`.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/reports"
	"github.com/voiceiq/viq-cli/pkg/upload"
)

// DefaultBodyLimit caps multipart uploads to the queue.
const DefaultBodyLimit = "512M"

// DetailSource loads a full report.
type DetailSource interface {
	GetLog(ctx context.Context, id string) (*reports.Detail, error)
}

// Dependencies holds all handler dependencies
type Dependencies struct {
	Queue    *upload.Queue
	Table    *reports.Table
	Details  DetailSource
	Gatherer prometheus.Gatherer
	SpoolDir string
	Logger   logging.Logger
	Now      func() time.Time
}

// Handlers holds all handler instances
type Handlers struct {
	Health  *HealthHandler
	Queue   *QueueHandler
	Reports *ReportsHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		Health:  NewHealthHandler(deps.Gatherer),
		Queue:   NewQueueHandler(deps.Queue, deps.SpoolDir, logger),
		Reports: NewReportsHandler(deps.Table, deps.Details, now),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/health", handlers.Health.HandleHealth)
	e.GET("/version", handlers.Health.HandleVersion)
	e.GET("/metrics", handlers.Health.HandleMetrics)

	queueGroup := e.Group("/api/queue")
	queueGroup.GET("", handlers.Queue.HandleSnapshot)
	queueGroup.POST("", handlers.Queue.HandleEnqueue)
	queueGroup.DELETE("", handlers.Queue.HandleClear)
	queueGroup.POST("/:id/cancel", handlers.Queue.HandleCancel)
	queueGroup.DELETE("/:id", handlers.Queue.HandleRemove)

	reportGroup := e.Group("/api/reports")
	reportGroup.GET("", handlers.Reports.HandleList)
	reportGroup.POST("/next", handlers.Reports.HandleNext)
	reportGroup.POST("/prev", handlers.Reports.HandlePrev)
	reportGroup.POST("/refresh", handlers.Reports.HandleRefresh)
	reportGroup.DELETE("/filters", handlers.Reports.HandleClearFilters)
	reportGroup.GET("/:id", handlers.Reports.HandleGet)
	reportGroup.DELETE("/:id", handlers.Reports.HandleDelete)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, logger logging.Logger) {
	e.HTTPErrorHandler = ErrorHandler
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
	}))
	e.Use(middleware.BodyLimit(DefaultBodyLimit))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("Request served",
				logging.F("method", v.Method),
				logging.F("uri", v.URI),
				logging.F("status", v.Status),
				logging.F("latency_ms", v.Latency.Milliseconds()))
			return nil
		},
	}))
}

// New builds the echo instance with middleware and routes.
func New(deps *Dependencies) *echo.Echo {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	e := echo.New()
	SetupMiddleware(e, logger)
	RegisterRoutes(e, NewHandlers(deps))
	return e
}

// Serve runs the dashboard on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, deps *Dependencies) error {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	e := New(deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Dashboard listening", logging.F("addr", addr))
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Dashboard shutting down")
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

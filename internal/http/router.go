package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/kotky/gradebook-edx-platform-extensions/internal/http/handlers"
	httpMW "github.com/kotky/gradebook-edx-platform-extensions/internal/http/middleware"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

const (
	PathHealth  = "/healthcheck"
	PathReady   = "/readyz"
	PathMetrics = "/metrics"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	// ServiceName turns on otelgin spans when set.
	ServiceName string

	HealthHandler  *httpH.HealthHandler
	MetricsHandler *httpH.MetricsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log, PathHealth, PathReady, PathMetrics))
	r.Use(httpMW.Metrics(cfg.Metrics))

	if cfg.HealthHandler != nil {
		r.GET(PathHealth, cfg.HealthHandler.HealthCheck)
		r.GET(PathReady, cfg.HealthHandler.Ready)
	}
	if cfg.MetricsHandler != nil {
		r.GET(PathMetrics, cfg.MetricsHandler.Scrape)
	}
	return r
}

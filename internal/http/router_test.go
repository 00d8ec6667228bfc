package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httpH "github.com/kotky/gradebook-edx-platform-extensions/internal/http/handlers"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(nethttp.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestOpsRoutes(t *testing.T) {
	m := observability.New(time.Minute)
	dbDown := false
	r := NewRouter(RouterConfig{
		Log:     logger.NewNop(),
		Metrics: m,
		HealthHandler: httpH.NewHealthHandler(time.Second,
			httpH.ReadinessCheck{Name: "db", Probe: func(context.Context) error {
				if dbDown {
					return errors.New("connection refused")
				}
				return nil
			}},
		),
		MetricsHandler: httpH.NewMetricsHandler(m),
	})

	if w := serve(r, PathHealth); w.Code != nethttp.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", w.Code, w.Body.String())
	}
	w := serve(r, PathHealth)
	if w.Header().Get("X-Request-Id") == "" || w.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("trace headers missing: %v", w.Header())
	}

	if w := serve(r, PathReady); w.Code != nethttp.StatusOK {
		t.Fatalf("ready: %d %s", w.Code, w.Body.String())
	}
	dbDown = true
	w = serve(r, PathReady)
	if w.Code != nethttp.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "connection refused") {
		t.Fatalf("not ready: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, PathMetrics)
	if w.Code != nethttp.StatusOK || !strings.Contains(w.Body.String(), "gb_") {
		t.Fatalf("metrics: %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsDisabled(t *testing.T) {
	r := NewRouter(RouterConfig{MetricsHandler: httpH.NewMetricsHandler(nil)})
	if w := serve(r, PathMetrics); w.Code != nethttp.StatusNotFound {
		t.Fatalf("want 404 when metrics are off, got %d", w.Code)
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/http/response"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
)

type MetricsHandler struct {
	metrics *observability.Metrics
}

func NewMetricsHandler(m *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

func (h *MetricsHandler) Scrape(c *gin.Context) {
	if h.metrics == nil {
		response.RespondError(c, http.StatusNotFound, "metrics_disabled", errors.New("metrics are disabled"))
		return
	}
	h.metrics.WriteHTTP(c.Writer, c.Request)
}

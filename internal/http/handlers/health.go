package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/http/response"
)

// ReadinessCheck probes one dependency. A nil error means ready.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

type HealthHandler struct {
	checks  []ReadinessCheck
	timeout time.Duration
}

func NewHealthHandler(timeout time.Duration, checks ...ReadinessCheck) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout}
}

// HealthCheck is liveness only.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Ready runs every readiness check concurrently and reports each result.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed bool
	)
	for _, chk := range h.checks {
		wg.Add(1)
		go func(chk ReadinessCheck) {
			defer wg.Done()
			status := "ok"
			if err := chk.Probe(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			if status != "ok" {
				failed = true
			}
			results[chk.Name] = status
		}(chk)
	}
	wg.Wait()

	if failed {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": results})
		return
	}
	response.RespondOK(c, gin.H{"status": "ok", "checks": results})
}

package app

import (
	"fmt"
	"strings"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/clients/grades"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/queue"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/realtime/bus"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/temporalx"
)

type Clients struct {
	// EventBus is nil when REDIS_ADDR is unset; events then stay in-process.
	EventBus *bus.RedisBus
	Temporal temporalsdkclient.Client
	Grades   *grades.Client
}

func wireClients(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := bus.NewRedisBus(log, cfg.Redis, metrics)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		out.EventBus = b
	}

	// Temporal
	if cfg.Queue.Backend == queue.BackendTemporal {
		tc, err := temporalx.NewClient(cfg.Temporal, log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		out.Temporal = tc
	}

	// Grading service
	if cfg.Gradebook.Enabled {
		gc, err := grades.New(grades.Options{
			BaseURL:       cfg.Grades.BaseURL,
			ServiceSecret: cfg.Grades.ServiceSecret,
			Issuer:        cfg.Otel.ServiceName,
			Audience:      cfg.Grades.Audience,
			Timeout:       cfg.Grades.Timeout,
			MaxRetries:    cfg.Grades.MaxRetries,
		})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init grades client: %w", err)
		}
		out.Grades = gc
	}

	return out, nil
}

func (c Clients) Close() {
	if c.EventBus != nil {
		_ = c.EventBus.Close()
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
}

package app

import (
	"context"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	apphttp "github.com/kotky/gradebook-edx-platform-extensions/internal/http"
	httpH "github.com/kotky/gradebook-edx-platform-extensions/internal/http/handlers"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

func wireReadinessChecks(db *gorm.DB, clients Clients) []httpH.ReadinessCheck {
	checks := []httpH.ReadinessCheck{{
		Name: "database",
		Probe: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if clients.EventBus != nil {
		rdb := clients.EventBus.Client()
		checks = append(checks, httpH.ReadinessCheck{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	if clients.Temporal != nil {
		tc := clients.Temporal
		checks = append(checks, httpH.ReadinessCheck{
			Name: "temporal",
			Probe: func(ctx context.Context) error {
				_, err := tc.CheckHealth(ctx, &temporalsdkclient.CheckHealthRequest{})
				return err
			},
		})
	}
	return checks
}

func wireServer(log *logger.Logger, cfg Config, db *gorm.DB, clients Clients, metrics *observability.Metrics) *apphttp.Server {
	log.Info("Wiring ops server...")
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		HealthHandler:  httpH.NewHealthHandler(0, wireReadinessChecks(db, clients)...),
		MetricsHandler: httpH.NewMetricsHandler(metrics),
	})
}

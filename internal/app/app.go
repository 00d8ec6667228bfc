package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/db"
	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	apphttp "github.com/kotky/gradebook-edx-platform-extensions/internal/http"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/queue"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Server   *apphttp.Server
	Metrics  *observability.Metrics

	dbService    *db.Service
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

func NewWithConfig(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := observability.Init(log, cfg.Metrics.Enabled, cfg.Metrics.ScrapeInterval)
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	dbService, err := db.NewService(cfg.Database, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(dbService.DB(), cfg.Database.MigratePlatformTables); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	theDB := dbService.DB()

	reposet := wireRepos(theDB, log)

	clients, err := wireClients(log, cfg, metrics)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		dbService:    dbService,
		otelShutdown: otelShutdown,
	}
	if cfg.RunServer {
		a.Server = wireServer(log, cfg, theDB, clients, metrics)
	}
	return a, nil
}

// Run starts the event bridge, collectors, worker and ops server, and blocks
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.Clients.EventBus != nil {
		if err := bus.Bridge(gctx, a.Log, a.Clients.EventBus, a.Services.Events, domainevents.NameLeaderboardEntered); err != nil {
			return fmt.Errorf("start event bridge: %w", err)
		}
		a.Metrics.StartRedisCollector(gctx, a.Log, a.Clients.EventBus.Client())
	}
	a.Metrics.StartPostgresCollector(gctx, a.Log, a.DB)
	if a.Cfg.Queue.Backend == queue.BackendDB {
		a.Metrics.StartJobQueueCollector(gctx, a.Log, a.DB)
	}

	if w := a.Services.JobWorker; w != nil {
		w.Start(gctx)
		g.Go(func() error {
			<-gctx.Done()
			w.Wait()
			return nil
		})
	}
	if r := a.Services.TemporalWorker; r != nil {
		if err := r.Start(gctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	if a.Server != nil {
		g.Go(func() error {
			a.Log.Info("Ops server listening", "addr", a.Cfg.HTTP.Addr)
			return a.Server.Run(gctx, a.Cfg.HTTP.Addr, a.Cfg.HTTP.ShutdownTimeout)
		})
	}

	a.Log.Info("Gradebook running",
		"queue_backend", a.Cfg.Queue.Backend,
		"run_worker", a.Cfg.RunWorker,
		"run_server", a.Cfg.RunServer,
		"gradebook_enabled", a.Cfg.Gradebook.Enabled,
	)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	a.Log.Sync()
}

package bus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type RedisBus struct {
	log     *logger.Logger
	metrics *observability.Metrics
	rdb     *goredis.Client
	channel string
	origin  string
}

func NewRedisBus(log *logger.Logger, cfg RedisConfig, metrics *observability.Metrics) (*RedisBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	ch := strings.TrimSpace(cfg.Channel)
	if ch == "" {
		ch = "gradebook.events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		log:     log.With("service", "RedisEventBus"),
		metrics: metrics,
		rdb:     rdb,
		channel: ch,
		origin:  uuid.NewString(),
	}, nil
}

// Client exposes the underlying connection for health checks and collectors.
func (b *RedisBus) Client() *goredis.Client {
	if b == nil {
		return nil
	}
	return b.rdb
}

func (b *RedisBus) Publish(ctx context.Context, ev domainevents.Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	raw, err := Encode(b.origin, ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.metrics.IncBusMessage("out", ev.EventName(), "error")
		return err
	}
	b.metrics.IncBusMessage("out", ev.EventName(), "ok")
	return nil
}

func (b *RedisBus) StartForwarder(ctx context.Context, onEvent func(ctx context.Context, ev domainevents.Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				b.handle(ctx, []byte(m.Payload), onEvent)
			}
		}
	}()

	return nil
}

func (b *RedisBus) handle(ctx context.Context, raw []byte, onEvent func(ctx context.Context, ev domainevents.Event)) {
	env, ev, err := Decode(raw)
	if err != nil {
		b.log.Warn("bad redis event payload", "error", err)
		b.metrics.IncBusMessage("in", env.Name, "invalid")
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.metrics.IncBusMessage("in", env.Name, "ok")
	onEvent(ctx, ev)
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

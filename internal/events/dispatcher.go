// Package events is the in-process publish/subscribe dispatcher that couples
// event producers to the gradebook receivers.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

// Handler receives one event. A returned error is reported to the publisher.
type Handler func(ctx context.Context, ev domainevents.Event) error

type subscription struct {
	uid     string
	handler Handler
}

type Dispatcher struct {
	log     *logger.Logger
	metrics *observability.Metrics

	mu   sync.RWMutex
	subs map[string][]subscription
}

func NewDispatcher(baseLog *logger.Logger, metrics *observability.Metrics) *Dispatcher {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Dispatcher{
		log:     baseLog.With("component", "EventDispatcher"),
		metrics: metrics,
		subs:    map[string][]subscription{},
	}
}

// Subscribe registers h for events named name. A second subscription with the
// same uid replaces the first, so repeated wiring is idempotent.
func (d *Dispatcher) Subscribe(name, uid string, h Handler) {
	name = strings.TrimSpace(name)
	uid = strings.TrimSpace(uid)
	if name == "" || h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.subs[name]
	if uid != "" {
		for i := range list {
			if list[i].uid == uid {
				list[i].handler = h
				return
			}
		}
	}
	d.subs[name] = append(list, subscription{uid: uid, handler: h})
}

// Unsubscribe removes the handler registered under uid.
func (d *Dispatcher) Unsubscribe(name, uid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.subs[name]
	for i := range list {
		if list[i].uid == uid {
			d.subs[name] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Handlers reports the number of handlers registered for name.
func (d *Dispatcher) Handlers(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[name])
}

// Publish calls every handler for ev synchronously in subscription order.
// All handlers run even when one fails; their errors are joined.
func (d *Dispatcher) Publish(ctx context.Context, ev domainevents.Event) error {
	if ev == nil {
		return errors.New("events: nil event")
	}
	name := ev.EventName()
	d.mu.RLock()
	list := append([]subscription(nil), d.subs[name]...)
	d.mu.RUnlock()

	var errs []error
	for _, s := range list {
		if err := d.call(ctx, s, ev); err != nil {
			d.log.Warn("event handler failed", "event", name, "handler", s.uid, "error", err)
			errs = append(errs, err)
		}
	}
	status := "ok"
	if len(errs) > 0 {
		status = "error"
	}
	d.metrics.IncEventDispatch(name, status)
	return errors.Join(errs...)
}

func (d *Dispatcher) call(ctx context.Context, s subscription, ev domainevents.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("events: handler %q panicked: %v", s.uid, r)
		}
	}()
	return s.handler(ctx, ev)
}

// On subscribes a handler typed to a concrete event.
func On[T domainevents.Event](d *Dispatcher, uid string, fn func(ctx context.Context, ev T) error) {
	var zero T
	d.Subscribe(zero.EventName(), uid, func(ctx context.Context, ev domainevents.Event) error {
		typed, ok := ev.(T)
		if !ok {
			return fmt.Errorf("events: %s handler %q got %T", zero.EventName(), uid, ev)
		}
		return fn(ctx, typed)
	})
}

type remoteKey struct{}

// WithRemoteOrigin marks ctx as carrying an event received from another
// process, so bridges do not echo it back out.
func WithRemoteOrigin(ctx context.Context) context.Context {
	return context.WithValue(ctx, remoteKey{}, true)
}

// WithLocalOrigin clears the remote marker for events this process derives
// from a remote one.
func WithLocalOrigin(ctx context.Context) context.Context {
	if !IsRemoteOrigin(ctx) {
		return ctx
	}
	return context.WithValue(ctx, remoteKey{}, false)
}

func IsRemoteOrigin(ctx context.Context) bool {
	v, _ := ctx.Value(remoteKey{}).(bool)
	return v
}

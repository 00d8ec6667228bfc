package bus

import (
	"context"
	"fmt"

	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

const relayUID = "bus.relay"

// Bridge relays the named local events out to b and re-dispatches every
// remote event received on b into d. Events received from the bus are never
// relayed back out.
func Bridge(ctx context.Context, log *logger.Logger, b Bus, d *events.Dispatcher, relay ...string) error {
	if b == nil || d == nil {
		return fmt.Errorf("bus and dispatcher required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "EventBridge")

	for _, name := range relay {
		d.Subscribe(name, relayUID, func(ctx context.Context, ev domainevents.Event) error {
			if events.IsRemoteOrigin(ctx) {
				return nil
			}
			return b.Publish(ctx, ev)
		})
	}

	return b.StartForwarder(ctx, func(ctx context.Context, ev domainevents.Event) {
		if err := d.Publish(events.WithRemoteOrigin(ctx), ev); err != nil {
			log.Warn("remote event handling failed", "event", ev.EventName(), "error", err)
		}
	})
}

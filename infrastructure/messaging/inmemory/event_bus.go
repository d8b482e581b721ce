package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/domain/events"
)

// AllEvents subscribes a handler to every event type
const AllEvents = "*"

// EventBus dispatches events synchronously to in-process subscribers, in
// subscription order. A failing handler does not stop the others.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	logger   *zap.Logger
}

// NewEventBus creates an empty bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{handlers: make(map[string][]ports.EventHandler), logger: logger}
}

// Subscribe registers a handler for an event type
func (b *EventBus) Subscribe(eventType string, handler ports.EventHandler) error {
	if eventType == "" || handler == nil {
		return fmt.Errorf("subscribe requires an event type and a handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Publish dispatches one event
func (b *EventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	return b.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch dispatches events in order and reports how many deliveries failed
func (b *EventBus) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}

	start := time.Now()
	failed := 0
	delivered := 0
	for _, event := range evts {
		for _, h := range b.subscribers(event.GetEventType()) {
			delivered++
			if err := h.Handle(ctx, event); err != nil {
				failed++
				b.logger.Warn("event handler failed",
					zap.String("event_type", event.GetEventType()),
					zap.String("aggregate_id", event.GetAggregateID()),
					zap.Error(err),
				)
			}
		}
	}

	b.logger.Debug("events dispatched",
		zap.Int("events", len(evts)),
		zap.Int("deliveries", delivered),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)

	if failed > 0 {
		return fmt.Errorf("%d of %d event deliveries failed", failed, delivered)
	}
	return nil
}

func (b *EventBus) subscribers(eventType string) []ports.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ports.EventHandler, 0, len(b.handlers[eventType])+len(b.handlers[AllEvents]))
	out = append(out, b.handlers[eventType]...)
	if eventType != AllEvents {
		out = append(out, b.handlers[AllEvents]...)
	}
	return out
}

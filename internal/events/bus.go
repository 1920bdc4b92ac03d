package events

import (
	"context"
	"log/slog"
	"sync"

	"news_portal/internal/domain"
)

type Handler func(ctx context.Context, event domain.Event) error

// Bus delivers events synchronously to the handlers registered for their type,
// in registration order. A failing handler is logged and does not stop the rest.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]namedHandler
	logger   *slog.Logger
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[domain.EventType][]namedHandler),
		logger:   logger.With("component", "event_bus"),
	}
}

func (b *Bus) Subscribe(eventType domain.EventType, name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], namedHandler{name: name, fn: fn})
}

func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type()]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.fn(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				"event", event.Type(),
				"handler", h.name,
				"error", err,
			)
		}
	}
}

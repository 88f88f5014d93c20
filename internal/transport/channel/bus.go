// Package channel carries trigger events from their source (scheduler or
// HTTP endpoint) to the invocation runner over a buffered channel.
package channel

import (
	"context"

	"github.com/djlord-it/query-trigger/internal/domain"
)

type EventBus struct {
	ch chan domain.TriggerEvent
}

func NewEventBus(buffer int) *EventBus {
	return &EventBus{
		ch: make(chan domain.TriggerEvent, buffer),
	}
}

// Emit blocks until the event is buffered or the context is cancelled.
// Overlapping events are independent invocations; the bus never deduplicates.
func (b *EventBus) Emit(ctx context.Context, event domain.TriggerEvent) error {
	select {
	case b.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *EventBus) Channel() <-chan domain.TriggerEvent {
	return b.ch
}

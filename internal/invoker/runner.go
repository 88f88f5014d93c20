package invoker

import (
	"context"
	"log"
	"time"

	"github.com/djlord-it/query-trigger/internal/domain"
)

// DrainTimeout is the maximum time to wait for buffered events during shutdown.
const DrainTimeout = 30 * time.Second

// Run processes events from the channel until the context is cancelled, then
// drains whatever is still buffered. Each event is one independent invocation;
// a failed invocation is logged and the next event proceeds.
func (i *Invoker) Run(ctx context.Context, ch <-chan domain.TriggerEvent) {
	for {
		select {
		case <-ctx.Done():
			i.drain(ch)
			return
		case event := <-ch:
			if _, err := i.Invoke(ctx, event); err != nil {
				log.Printf("invoker: event=%s failed: %v", event.ID, err)
			}
		}
	}
}

// drain processes remaining buffered events after the shutdown signal, using
// a background context since the main one is already cancelled.
func (i *Invoker) drain(ch <-chan domain.TriggerEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("invoker: drain timeout, processed %d events", count)
			}
			return
		case event, ok := <-ch:
			if !ok {
				log.Printf("invoker: drain complete, processed %d events", count)
				return
			}
			if _, err := i.Invoke(drainCtx, event); err != nil {
				log.Printf("invoker: drain event=%s failed: %v", event.ID, err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("invoker: drain complete, processed %d events", count)
			}
			return
		}
	}
}

package eventing

import (
	"context"
	"log"
)

// On subscribes a typed handler under a consumer name. Handler errors are
// logged and returned to the publisher; they never panic the bus.
func On[T any](bus EventBus, consumerName string, logger *log.Logger, handler func(ctx context.Context, event T) error) {
	if bus == nil || handler == nil {
		return
	}
	bus.Subscribe(EventTypeOf[T](), func(ctx context.Context, event any) error {
		evt, ok := event.(T)
		if !ok {
			return ErrInvalidEventType
		}
		if err := handler(ctx, evt); err != nil {
			if logger != nil {
				logger.Printf("event handler error: consumer=%s err=%v", consumerName, err)
			}
			return err
		}
		return nil
	})
}

package events

import (
	"context"
	"errors"

	"furniture-order-service/internal/infra"
)

// Fanout publishes to every sink and reports all failures together.
// An empty Fanout discards events.
type Fanout []infra.EventPublisher

var _ infra.EventPublisher = Fanout(nil)

func (f Fanout) Publish(ctx context.Context, routingKey string, data any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, routingKey, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

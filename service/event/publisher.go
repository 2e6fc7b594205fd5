package event

import (
	"context"
	"time"

	"github.com/viant/approval/service/messaging"
)

type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
	now   func() time.Time
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue, now: time.Now}
}

func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = p.now()
	}
	return p.queue.Publish(ctx, event)
}

// Consume returns the next message unacknowledged; the caller settles it.
func (p *Publisher[T]) Consume(ctx context.Context) (messaging.Message[Event[T]], error) {
	return p.queue.Consume(ctx)
}

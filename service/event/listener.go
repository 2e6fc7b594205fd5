package event

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler processes one event; a returned error nacks the message.
type Handler[T any] func(ctx context.Context, event *Event[T]) error

type Listener[T any] struct {
	publisher *Publisher[T]
	handler   Handler[T]
	logger    logrus.FieldLogger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewListener[T any](publisher *Publisher[T], handler Handler[T], logger logrus.FieldLogger) *Listener[T] {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Listener[T]{publisher: publisher, handler: handler, logger: logger}
}

// Start consumes events on a goroutine until Stop or ctx cancellation.
func (l *Listener[T]) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			msg, err := l.publisher.Consume(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
					l.logger.WithError(err).Warn("event listener stopped")
				}
				return
			}
			evt := msg.T()
			if err = l.handler(ctx, evt); err != nil {
				entry := l.logger.WithError(err)
				if evt.Context != nil {
					entry = entry.WithFields(logrus.Fields{"type": evt.Context.Type, "instance": evt.Context.InstanceID})
				}
				entry.Warn("event handler failed")
				_ = msg.Nack(err)
				continue
			}
			_ = msg.Ack()
		}
	}()
}

// Stop cancels consumption and waits for the running handler to return.
func (l *Listener[T]) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// Package messaging defines the queue abstraction the event bus publishes on.
package messaging

import "context"

// Queue carries payloads of type T from publishers to one consumer loop.
type Queue[T any] interface {
	Publish(ctx context.Context, t *T) error
	// Consume blocks until a message arrives, the queue closes or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is one delivery. Exactly one of Ack or Nack settles it; Nack
// leaves redelivery to the queue.
type Message[T any] interface {
	T() *T
	Ack() error
	Nack(err error) error
}

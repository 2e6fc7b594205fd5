package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/approval/service/messaging"
)

// ErrQueueFull is returned by a non-blocking Publish when the buffer is exhausted.
var ErrQueueFull = errors.New("memory queue: full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory queue: closed")

// Config for memory queue implementation
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	DeadLetter bool
	Buffer     int
	// Block makes Publish wait for buffer space instead of failing fast.
	Block bool
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		DeadLetter: true,
		Buffer:     256,
	}
}

// Message is a single delivery of a payload.
type Message[T any] struct {
	id      string
	payload T
	queue   *Queue[T]
	attempt int
	mu      sync.Mutex
	settled bool
}

// ID returns the message id, stable across redeliveries.
func (m *Message[T]) ID() string { return m.id }

// Attempt returns the delivery attempt, starting at 1.
func (m *Message[T]) Attempt() int { return m.attempt }

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

func (m *Message[T]) settle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %v already settled", m.id)
	}
	m.settled = true
	return nil
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	return m.settle()
}

// Nack schedules a redelivery after RetryDelay or moves the message to the
// dead letter list once MaxRetries redeliveries were used.
func (m *Message[T]) Nack(cause error) error {
	if err := m.settle(); err != nil {
		return err
	}
	q := m.queue
	if m.attempt <= q.config.MaxRetries {
		next := &Message[T]{id: m.id, payload: m.payload, queue: q, attempt: m.attempt + 1}
		time.AfterFunc(q.config.RetryDelay, func() {
			_ = q.enqueue(context.Background(), next, true)
		})
		return nil
	}
	if q.config.DeadLetter {
		q.dlqMu.Lock()
		q.dlq = append(q.dlq, DeadLetter[T]{ID: m.id, Payload: m.payload, Cause: cause})
		q.dlqMu.Unlock()
	}
	return nil
}

// DeadLetter is a message that exhausted its retries.
type DeadLetter[T any] struct {
	ID      string
	Payload T
	Cause   error
}

// Queue implements an in-memory messaging.Queue
type Queue[T any] struct {
	messages  chan *Message[T]
	config    Config
	dlq       []DeadLetter[T]
	dlqMu     sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.Buffer),
		config:   config,
		done:     make(chan struct{}),
	}
}

// Publish adds a copy of t to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return fmt.Errorf("memory queue: nil payload")
	}
	return q.enqueue(ctx, &Message[T]{id: uuid.New().String(), payload: *t, queue: q, attempt: 1}, q.config.Block)
}

func (q *Queue[T]) enqueue(ctx context.Context, msg *Message[T], block bool) error {
	select {
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !block {
		select {
		case q.messages <- msg:
			return nil
		default:
			return ErrQueueFull
		}
	}
	select {
	case q.messages <- msg:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// DeadLetters returns a snapshot of the dead letter list.
func (q *Queue[T]) DeadLetters() []DeadLetter[T] {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return append([]DeadLetter[T]{}, q.dlq...)
}

// Close stops publishing and unblocks consumers.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)

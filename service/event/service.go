package event

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/viant/approval/service/messaging/memory"
)

// Service is the workflow event bus: the executor publishes, one listener
// (for example a notification collaborator) consumes.
type Service struct {
	queue     *memory.Queue[Event[Detail]]
	publisher *Publisher[Detail]
	listener  *Listener[Detail]
	logger    logrus.FieldLogger
	mux       sync.Mutex
}

// Publish emits an event; a full buffer drops the event with a warning so
// that workflow transitions never wait on consumers.
func (s *Service) Publish(ctx context.Context, evt *Event[Detail]) error {
	err := s.publisher.Publish(ctx, evt)
	if errors.Is(err, memory.ErrQueueFull) {
		s.logger.WithField("type", evt.Context.Type).Warn("event queue full, event dropped")
		return nil
	}
	return err
}

// Publisher returns the underlying publisher.
func (s *Service) Publisher() *Publisher[Detail] {
	return s.publisher
}

// SetListener replaces the running listener.
func (s *Service) SetListener(ctx context.Context, handler Handler[Detail]) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[Detail](s.publisher, handler, s.logger)
	s.listener.Start(ctx)
}

// Close stops the listener and the queue.
func (s *Service) Close() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
	}
	s.queue.Close()
}

// DeadLetters returns events whose handler failed past the retry limit.
func (s *Service) DeadLetters() []memory.DeadLetter[Event[Detail]] {
	return s.queue.DeadLetters()
}

// New creates an in-memory event bus.
func New(config memory.Config, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	queue := memory.NewQueue[Event[Detail]](config)
	return &Service{queue: queue, publisher: NewPublisher[Detail](queue), logger: logger}
}

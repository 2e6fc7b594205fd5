package executor

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/approval/internal/clock"
	"github.com/viant/approval/internal/idgen"
	"github.com/viant/approval/service/document"
	"github.com/viant/approval/service/event"
)

// Option customises the executor.
type Option func(s *Service)

// WithConfig sets retry and timeout settings; zero fields keep their defaults.
func WithConfig(config Config) Option {
	return func(s *Service) {
		if config.MaxRetries > 0 {
			s.config.MaxRetries = config.MaxRetries
		}
		if config.RetryInterval > 0 {
			s.config.RetryInterval = config.RetryInterval
		}
		if config.DefaultTimeoutAction != "" {
			s.config.DefaultTimeoutAction = config.DefaultTimeoutAction
		}
	}
}

// WithForms sets the form source snapshotted at start.
func WithForms(forms document.Forms) Option {
	return func(s *Service) { s.forms = forms }
}

// WithEvents sets the bus receiving workflow events.
func WithEvents(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

func WithClock(now clock.Func) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGen(newID idgen.Func) Option {
	return func(s *Service) { s.newID = newID }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

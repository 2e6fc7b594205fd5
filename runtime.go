package approval

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/viant/approval/tracing"
)

// Runtime runs the background parts of the engine: the timeout sweeper and
// the event listener.
type Runtime struct {
	service *Service
	mux     sync.Mutex
	started bool
}

// Start starts the sweeper when enabled and the listener when an event
// handler was registered.
func (r *Runtime) Start(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.started {
		return nil
	}
	s := r.service
	if s.eventHandler != nil {
		s.events.SetListener(ctx, s.eventHandler)
	}
	if s.config.Scheduler.Enabled {
		if err := s.sweeper.Start(ctx); err != nil {
			return err
		}
	}
	r.started = true
	s.logger.Info("approval runtime started")
	return nil
}

// Shutdown stops background work and releases the stores. The service must
// not be used afterwards.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	s := r.service
	s.sweeper.Stop()
	s.events.Close()
	r.started = false
	var result *multierror.Error
	if err := tracing.Flush(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/viant/approval/internal/clock"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/criteria"
)

// TimeoutHandler applies the timeout policy of every due position of an instance.
type TimeoutHandler interface {
	HandleTimeout(ctx context.Context, instanceID string) error
}

// Sweeper periodically finds Running instances past their deadline and hands
// them to the executor. The executor clears a deadline in the same write that
// applies its policy, so a deadline fires at most once.
type Sweeper struct {
	store     dao.Service[string, instance.WorkflowInstance]
	handler   TimeoutHandler
	now       clock.Func
	logger    logrus.FieldLogger
	spec      string
	batchSize int
	mu        sync.Mutex
	cron      *cron.Cron
}

// Sweep handles up to batchSize due instances, earliest deadline first.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.List(ctx,
		dao.NewParameter(criteria.Status, string(instance.StatusRunning)),
		&dao.Parameter{Name: criteria.DueBefore, Value: now},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to list due instances: %w", err)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].TimeoutAt.Before(*due[j].TimeoutAt) })
	if s.batchSize > 0 && len(due) > s.batchSize {
		due = due[:s.batchSize]
	}
	var result *multierror.Error
	handled := 0
	for _, inst := range due {
		if ctx.Err() != nil {
			break
		}
		if err := s.handler.HandleTimeout(ctx, inst.ID); err != nil {
			s.logger.WithError(err).WithField("instance", inst.ID).Warn("timeout handling failed")
			result = multierror.Append(result, fmt.Errorf("instance %v: %w", inst.ID, err))
			continue
		}
		handled++
	}
	if handled > 0 {
		s.logger.WithField("count", handled).Info("timeouts handled")
	}
	return handled, result.ErrorOrNil()
}

// Start schedules Sweep on the cron spec. Overlapping runs are skipped.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	logger := cronLogger{logger: s.logger}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(s.spec, func() { _, _ = s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop stops scheduling and waits for a running sweep.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	ret := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ret[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return ret
}

// Option customises the sweeper.
type Option func(s *Sweeper)

// WithClock sets the time source.
func WithClock(now clock.Func) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithSchedule sets the cron spec, for example "@every 1m".
func WithSchedule(spec string) Option {
	return func(s *Sweeper) { s.spec = spec }
}

// WithBatchSize caps instances handled per sweep.
func WithBatchSize(size int) Option {
	return func(s *Sweeper) { s.batchSize = size }
}

// NewSweeper creates a sweeper over store.
func NewSweeper(store dao.Service[string, instance.WorkflowInstance], handler TimeoutHandler, opts ...Option) *Sweeper {
	ret := &Sweeper{
		store:   store,
		handler: handler,
		now:     clock.System,
		logger:  logrus.StandardLogger(),
		spec:    "@every 1m",
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

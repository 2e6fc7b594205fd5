package approval

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/approval/internal/clock"
	"github.com/viant/approval/internal/env"
	"github.com/viant/approval/internal/idgen"
	"github.com/viant/approval/internal/logging"
	"github.com/viant/approval/model"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/definition"
	"github.com/viant/approval/service/dao/store"
	"github.com/viant/approval/service/directory"
	"github.com/viant/approval/service/document"
	"github.com/viant/approval/service/event"
	"github.com/viant/approval/service/executor"
	"github.com/viant/approval/service/messaging/memory"
	"github.com/viant/approval/service/resolver"
	"github.com/viant/approval/service/scheduler"
	"github.com/viant/approval/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	aggregate "github.com/viant/approval/service/approval"
)

type (
	// ActionRequest is an approver decision submitted for an instance.
	ActionRequest = executor.ActionRequest
	// Outcome is the state of an approval node visit after an action.
	Outcome = aggregate.Outcome
	// InstanceSummary describes one pending task.
	InstanceSummary = instance.Summary
)

// Service is the engine facade.
type Service struct {
	config          *Config
	fs              afs.Service
	store           dao.Service[string, instance.WorkflowInstance]
	definitionStore dao.Service[string, model.WorkflowDefinition]
	definitions     *definition.Service
	documents       document.Store
	forms           document.Forms
	directory       directory.Directory
	events          *event.Service
	eventHandler    event.Handler[event.Detail]
	executor        *executor.Service
	sweeper         *scheduler.Sweeper
	tracingExporter sdktrace.SpanExporter
	now             clock.Func
	newID           idgen.Func
	logger          logrus.FieldLogger
	closers         []closer
	runtime         *Runtime
}

// PublishDefinition validates def and stores it as a new revision.
func (s *Service) PublishDefinition(ctx context.Context, def *model.WorkflowDefinition) (*model.WorkflowDefinition, error) {
	ret, err := s.definitions.Publish(ctx, def)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"definition": ret.ID, "version": ret.Version.String()}).Info("definition published")
	return ret, nil
}

// PublishDefinitionURL loads a YAML definition from URL and publishes it.
func (s *Service) PublishDefinitionURL(ctx context.Context, URL string) (*model.WorkflowDefinition, error) {
	def, err := s.definitions.LoadURL(ctx, URL)
	if err != nil {
		return nil, err
	}
	return s.PublishDefinition(ctx, def)
}

// LoadDefinition returns the latest revision of id.
func (s *Service) LoadDefinition(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	return s.definitions.Load(ctx, id)
}

// DeactivateDefinition stops new instances from starting on id.
func (s *Service) DeactivateDefinition(ctx context.Context, id string) error {
	return s.definitions.Deactivate(ctx, id)
}

// StartInstance starts a workflow for documentID and returns the instance id.
func (s *Service) StartInstance(ctx context.Context, definitionID, documentID, startedBy string, variables map[string]interface{}) (string, error) {
	inst, err := s.executor.Start(ctx, definitionID, documentID, startedBy, variables)
	if err != nil {
		return "", err
	}
	return inst.ID, nil
}

// SubmitApprovalAction applies an approver decision.
func (s *Service) SubmitApprovalAction(ctx context.Context, request *ActionRequest) (Outcome, error) {
	return s.executor.SubmitApprovalAction(ctx, request)
}

// GetPendingTasks lists the tasks awaiting approverID.
func (s *Service) GetPendingTasks(ctx context.Context, approverID string) ([]*InstanceSummary, error) {
	return s.executor.GetPendingTasks(ctx, approverID)
}

// CancelInstance terminates a running instance.
func (s *Service) CancelInstance(ctx context.Context, instanceID, reason string) error {
	return s.executor.Cancel(ctx, instanceID, reason)
}

// Instance returns the stored instance.
func (s *Service) Instance(ctx context.Context, instanceID string) (*instance.WorkflowInstance, error) {
	return s.executor.Instance(ctx, instanceID)
}

// HandleTimeout applies the timeout policy to every expired position of instanceID.
func (s *Service) HandleTimeout(ctx context.Context, instanceID string) error {
	return s.executor.HandleTimeout(ctx, instanceID)
}

// Sweep runs one timeout sweep and returns the number of instances handled.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.sweeper.Sweep(ctx)
}

// RetryFault re-enters the faulted nodes, all of them when no position is named.
func (s *Service) RetryFault(ctx context.Context, instanceID string, positionIDs ...string) (*instance.WorkflowInstance, error) {
	return s.executor.RetryFault(ctx, instanceID, positionIDs...)
}

// UpdateVariables merges values into the instance variables.
func (s *Service) UpdateVariables(ctx context.Context, instanceID string, values map[string]interface{}) (*instance.WorkflowInstance, error) {
	return s.executor.UpdateVariables(ctx, instanceID, values)
}

func (s *Service) Runtime() *Runtime {
	return s.runtime
}

func (s *Service) Config() *Config {
	return s.config
}

// Documents returns the document store.
func (s *Service) Documents() document.Store {
	return s.documents
}

func (s *Service) Logger() logrus.FieldLogger {
	return s.logger
}

// Events returns the event bus.
func (s *Service) Events() *event.Service {
	return s.events
}

func (s *Service) init(ctx context.Context) error {
	if s.logger == nil {
		logger, err := logging.New(s.config.Log)
		if err != nil {
			return err
		}
		s.logger = logger
	}
	if err := s.initTracing(); err != nil {
		return err
	}
	if s.store == nil {
		aStore, closeFn, err := openStore(ctx, s.config.Store, s.fs, s.logger)
		if err != nil {
			return fmt.Errorf("failed to open instance store: %w", err)
		}
		s.store = aStore
		if closeFn != nil {
			s.closers = append(s.closers, closeFn)
		}
	}
	if s.definitionStore == nil && s.config.Definitions.URL != "" {
		defStore, err := store.NewFSStore[model.WorkflowDefinition](ctx, s.fs, env.Expand(s.config.Definitions.URL),
			func(def *model.WorkflowDefinition) string { return definition.Key(def.ID, def.Version) })
		if err != nil {
			return fmt.Errorf("failed to open definition store: %w", err)
		}
		s.definitionStore = defStore
	}
	defOptions := []definition.Option{definition.WithFS(s.fs), definition.WithClock(s.now)}
	if s.definitionStore != nil {
		defOptions = append(defOptions, definition.WithStore(s.definitionStore))
	}
	s.definitions = definition.New(defOptions...)
	if s.documents == nil {
		if err := s.initDocuments(ctx); err != nil {
			return err
		}
	}
	if s.forms == nil {
		if forms, ok := s.documents.(document.Forms); ok {
			s.forms = forms
		}
	}
	if s.directory == nil {
		dir := directory.NewMemory()
		if URL := s.config.Directory.URL; URL != "" {
			if err := dir.Load(ctx, s.fs, env.Expand(URL)); err != nil {
				return fmt.Errorf("failed to load directory: %w", err)
			}
		}
		s.directory = dir
	}
	events := s.config.Events
	queue := memory.DefaultConfig()
	if events.Buffer > 0 {
		queue.Buffer = events.Buffer
	}
	queue.MaxRetries = events.MaxRetries
	if events.RetryDelay > 0 {
		queue.RetryDelay = events.RetryDelay
	}
	s.events = event.New(queue, s.logger)

	execOptions := []executor.Option{
		executor.WithConfig(s.config.Executor),
		executor.WithEvents(s.events),
		executor.WithClock(s.now),
		executor.WithIDGen(s.newID),
		executor.WithLogger(s.logger),
	}
	if s.forms != nil {
		execOptions = append(execOptions, executor.WithForms(s.forms))
	}
	s.executor = executor.New(s.store, s.definitions, s.documents, resolver.New(s.directory), execOptions...)
	sweepOptions := []scheduler.Option{
		scheduler.WithClock(s.now),
		scheduler.WithLogger(s.logger),
		scheduler.WithBatchSize(s.config.Scheduler.BatchSize),
	}
	if spec := s.config.Scheduler.Spec; spec != "" {
		sweepOptions = append(sweepOptions, scheduler.WithSchedule(spec))
	}
	s.sweeper = scheduler.NewSweeper(s.store, s.executor, sweepOptions...)
	s.runtime = &Runtime{service: s}
	return nil
}

func (s *Service) initDocuments(ctx context.Context) error {
	URL := s.config.Documents.URL
	if URL == "" {
		s.documents = document.NewMemory()
		return nil
	}
	documents, err := document.NewFS(ctx, s.fs, env.Expand(URL))
	if err != nil {
		return err
	}
	s.documents = documents
	return nil
}

func (s *Service) initTracing() error {
	cfg := s.config.Tracing
	if s.tracingExporter != nil {
		return tracing.InitWithExporter(cfg.ServiceName, cfg.ServiceVersion, s.tracingExporter)
	}
	if !cfg.Enabled {
		return nil
	}
	return tracing.Init(cfg.ServiceName, cfg.ServiceVersion, cfg.Output)
}

func (s *Service) close(ctx context.Context) error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}

// New creates the engine. Stores not supplied through options are opened
// from the configuration.
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig(), fs: afs.New(), now: clock.System, newID: idgen.UUID}
	for _, option := range options {
		option(ret)
	}
	if err := ret.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := ret.init(ctx); err != nil {
		_ = ret.close(ctx)
		return nil, err
	}
	return ret, nil
}

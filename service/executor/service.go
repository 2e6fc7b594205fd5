package executor

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/viant/approval/internal/clock"
	"github.com/viant/approval/internal/idgen"
	"github.com/viant/approval/model"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/criteria"
	"github.com/viant/approval/service/document"
	"github.com/viant/approval/service/event"
	"github.com/viant/approval/tracing"
)

// errUnchanged aborts a transition without writing.
var errUnchanged = errors.New("instance unchanged")

// Definitions returns the latest published revision of a definition.
type Definitions interface {
	Load(ctx context.Context, id string) (*model.WorkflowDefinition, error)
}

// Resolver expands approver rules into user ids.
type Resolver interface {
	ResolveNode(ctx context.Context, config *graph.ApprovalConfig) ([]string, error)
	ResolveRules(ctx context.Context, rules []graph.ApproverRule) ([]string, error)
}

// Config controls conflict retries and the engine-wide timeout policy.
type Config struct {
	MaxRetries           int           `json:"maxRetries" yaml:"maxRetries" mapstructure:"maxRetries"`
	RetryInterval        time.Duration `json:"retryInterval" yaml:"retryInterval" mapstructure:"retryInterval"`
	DefaultTimeoutAction string        `json:"defaultTimeoutAction" yaml:"defaultTimeoutAction" mapstructure:"defaultTimeoutAction"`
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           5,
		RetryInterval:        10 * time.Millisecond,
		DefaultTimeoutAction: graph.TimeoutActionNone,
	}
}

// Service is the instance executor.
type Service struct {
	store       dao.Service[string, instance.WorkflowInstance]
	definitions Definitions
	documents   document.Store
	forms       document.Forms
	resolver    Resolver
	events      *event.Service
	config      Config
	now         clock.Func
	newID       idgen.Func
	logger      logrus.FieldLogger
}

// Instance returns a copy of the stored instance.
func (s *Service) Instance(ctx context.Context, id string) (*instance.WorkflowInstance, error) {
	ret, err := s.store.Load(ctx, id)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, types.WrapError(types.CodeNotFound, err, "workflow instance %v", id)
	}
	return ret, err
}

// GetPendingTasks returns one summary per active position awaiting approverID,
// oldest instance first.
func (s *Service) GetPendingTasks(ctx context.Context, approverID string) (result []*instance.Summary, err error) {
	ctx, span := tracing.StartSpan(ctx, "executor.pendingTasks", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	if approverID == "" {
		return nil, types.NewError(types.CodeInvalidRequest, "approver id is required")
	}
	instances, err := s.store.List(ctx,
		dao.NewParameter(criteria.Status, string(instance.StatusRunning)),
		dao.NewParameter(criteria.ApproverID, approverID),
	)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		result = append(result, inst.TasksFor(approverID)...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.Before(result[j].StartedAt)
		}
		return result[i].InstanceID < result[j].InstanceID
	})
	return result, nil
}

// mutate runs fn against a fresh copy of the instance and writes the result
// back. A version conflict restarts from a new read until the retry budget
// is spent.
func (s *Service) mutate(ctx context.Context, id string, fn func(ctx context.Context, tx *transition) error) (*instance.WorkflowInstance, *transition, error) {
	if id == "" {
		return nil, nil, types.NewError(types.CodeInvalidRequest, "instance id is required")
	}
	var committed *instance.WorkflowInstance
	var last *transition
	attempt := 0
	op := func() error {
		attempt++
		inst, err := s.Instance(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		tx, err := s.newTransition(inst, s.now())
		if err != nil {
			return backoff.Permanent(err)
		}
		if err = fn(ctx, tx); err != nil {
			if errors.Is(err, errUnchanged) {
				tx.unchanged = true
				committed, last = inst, tx
				return nil
			}
			return backoff.Permanent(err)
		}
		inst.Refresh(tx.now)
		if err = s.store.Save(ctx, inst); err != nil {
			if errors.Is(err, dao.ErrConflict) {
				s.logger.WithFields(logrus.Fields{"instance": id, "attempt": attempt}).Debug("version conflict, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		committed, last = inst, tx
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.config.RetryInterval), uint64(s.config.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, dao.ErrConflict) {
			return nil, nil, types.WrapError(types.CodeConflict, err, "instance %v modified concurrently after %d attempts", id, attempt)
		}
		return nil, nil, err
	}
	if !last.unchanged {
		s.apply(ctx, committed, last)
	}
	return committed, last, nil
}

// apply performs the side effects of a committed transition.
func (s *Service) apply(ctx context.Context, inst *instance.WorkflowInstance, tx *transition) {
	logger := s.logger.WithFields(logrus.Fields{"instance": inst.ID, "definition": inst.WorkflowDefinitionID})
	if tx.documentStatus != "" {
		if err := s.documents.UpdateDocumentStatus(ctx, inst.DocumentID, tx.documentStatus); err != nil {
			logger.WithError(err).WithField("document", inst.DocumentID).Error("failed to update document status")
		}
	}
	if s.events == nil {
		return
	}
	for _, evt := range tx.events {
		if err := s.events.Publish(ctx, evt); err != nil {
			logger.WithError(err).WithField("type", evt.Context.Type).Warn("failed to publish event")
		}
	}
}

// New creates an executor.
func New(store dao.Service[string, instance.WorkflowInstance], definitions Definitions, documents document.Store, resolver Resolver, opts ...Option) *Service {
	ret := &Service{
		store:       store,
		definitions: definitions,
		documents:   documents,
		resolver:    resolver,
		config:      DefaultConfig(),
		now:         clock.System,
		newID:       idgen.UUID,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

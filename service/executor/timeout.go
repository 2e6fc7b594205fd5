package executor

import (
	"context"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/approval"
	"github.com/viant/approval/service/event"
	"github.com/viant/approval/service/scheduler"
	"github.com/viant/approval/tracing"
)

// SystemApproverID marks records written by the engine on behalf of a policy.
const SystemApproverID = "system"

// HandleTimeout applies the timeout policy to every position of a Running
// instance whose deadline passed. The deadline is cleared in the same write,
// so a deadline fires once even when sweeps overlap.
func (s *Service) HandleTimeout(ctx context.Context, instanceID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "executor.handleTimeout", tracing.KindInternal)
	span.WithAttributes(map[string]string{"instance.id": instanceID})
	defer func() { tracing.EndSpan(span, err) }()
	inst, tx, err := s.mutate(ctx, instanceID, func(ctx context.Context, tx *transition) error {
		return tx.expire(ctx)
	})
	if err != nil {
		return err
	}
	if !tx.unchanged {
		s.logger.WithFields(logrus.Fields{"instance": inst.ID, "status": inst.Status}).Info("timeout handled")
	}
	return nil
}

func (t *transition) expire(ctx context.Context) error {
	if t.inst.Status != instance.StatusRunning {
		return errUnchanged
	}
	var due []string
	for _, pos := range t.inst.Positions {
		if !pos.Waiting && pos.Visit > 0 && pos.TimeoutAt != nil && !pos.TimeoutAt.After(t.now) {
			due = append(due, pos.ID)
		}
	}
	if len(due) == 0 {
		return errUnchanged
	}
	for _, id := range due {
		if t.inst.Status.Terminal() {
			break
		}
		pos := t.inst.Position(id)
		if pos == nil || pos.TimeoutAt == nil {
			continue
		}
		if err := t.timeout(ctx, pos); err != nil {
			return err
		}
	}
	return nil
}

func (t *transition) timeout(ctx context.Context, pos *instance.Position) error {
	node := t.graph.Node(pos.NodeID)
	cfg := node.Approval()
	if cfg == nil {
		return types.NewError(types.CodeEvaluationFailed, "node %v is not an approval node", pos.NodeID)
	}
	pos.TimeoutAt = nil
	policy := scheduler.Policy(cfg, t.service.config.DefaultTimeoutAction)
	t.emit(event.TypeTimeoutFired, pos, node.ID, event.Detail{Action: policy})
	switch policy {
	case graph.TimeoutActionApprove:
		t.record(node.ID, pos.Visit, SystemApproverID, instance.ActionApprove, instance.SourceTimeout)
		return t.decide(ctx, pos, node, approval.OutcomeSatisfied)
	case graph.TimeoutActionReject:
		t.record(node.ID, pos.Visit, SystemApproverID, instance.ActionReject, instance.SourceTimeout)
		return t.decide(ctx, pos, node, approval.OutcomeRejected)
	case graph.TimeoutActionEscalate:
		return t.escalate(ctx, pos, node, cfg)
	}
	return nil
}

// escalate adds the escalation approvers as extra slots of the open visit and
// restarts its deadline.
func (t *transition) escalate(ctx context.Context, pos *instance.Position, node *graph.Node, cfg *graph.ApprovalConfig) error {
	visit := t.inst.Visit(node.ID, pos.Visit)
	if visit == nil {
		return types.NewError(types.CodeEvaluationFailed, "visit %d of node %v not found", pos.Visit, node.ID)
	}
	extra, err := t.service.resolver.ResolveRules(ctx, cfg.EscalateTo)
	if err != nil {
		return types.WrapError(types.CodeEvaluationFailed, err, "failed to resolve escalation approvers of node %v", node.ID)
	}
	for _, approver := range extra {
		if !slices.Contains(visit.Approvers, approver) {
			visit.Approvers = append(visit.Approvers, approver)
		}
	}
	pos.Pending = approval.Pending(cfg, visit.Approvers, t.inst.Records(node.ID, pos.Visit))
	pos.TimeoutAt = scheduler.ComputeTimeoutAt(cfg, t.now)
	t.emit(event.TypeApproversAssigned, pos, node.ID, event.Detail{Approvers: pos.Pending, TimeoutAt: pos.TimeoutAt})
	return nil
}

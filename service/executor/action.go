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
	"github.com/viant/approval/tracing"
)

// ActionRequest is an approver decision. NodeID may be omitted when the
// approver has a single pending task on the instance.
type ActionRequest struct {
	InstanceID   string `json:"instanceId"`
	NodeID       string `json:"nodeId,omitempty"`
	ApproverID   string `json:"approverId"`
	ApproverName string `json:"approverName,omitempty"`
	Action       string `json:"action"`
	Comment      string `json:"comment,omitempty"`
	DelegateTo   string `json:"delegateTo,omitempty"`
}

// Validate checks the request shape.
func (r *ActionRequest) Validate() error {
	switch {
	case r == nil:
		return types.NewError(types.CodeInvalidRequest, "action request is nil")
	case r.InstanceID == "":
		return types.NewError(types.CodeInvalidRequest, "instance id is required")
	case r.ApproverID == "":
		return types.NewError(types.CodeInvalidRequest, "approver id is required")
	case !instance.ValidAction(r.Action):
		return types.NewError(types.CodeInvalidRequest, "unsupported action %q", r.Action)
	case r.Action == instance.ActionDelegate && r.DelegateTo == "":
		return types.NewError(types.CodeInvalidRequest, "delegate target is required")
	case r.Action == instance.ActionDelegate && r.DelegateTo == r.ApproverID:
		return types.NewError(types.CodeInvalidRequest, "approver %v cannot delegate to themselves", r.ApproverID)
	case r.Action != instance.ActionDelegate && r.DelegateTo != "":
		return types.NewError(types.CodeInvalidRequest, "delegate target is only valid for %v", instance.ActionDelegate)
	}
	return nil
}

// SubmitApprovalAction records an approver decision and returns the
// aggregated outcome of the node visit it applies to. Resubmitting the
// latest action of an approver changes nothing.
func (s *Service) SubmitApprovalAction(ctx context.Context, request *ActionRequest) (outcome approval.Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "executor.submitAction", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	if err = request.Validate(); err != nil {
		return "", err
	}
	span.WithAttributes(map[string]string{
		"instance.id": request.InstanceID,
		"approver.id": request.ApproverID,
		"action":      request.Action,
	})
	inst, tx, err := s.mutate(ctx, request.InstanceID, func(ctx context.Context, tx *transition) error {
		return tx.act(ctx, request)
	})
	if err != nil {
		return "", err
	}
	s.logger.WithFields(logrus.Fields{
		"instance": inst.ID,
		"node":     request.NodeID,
		"approver": request.ApproverID,
		"action":   request.Action,
		"outcome":  tx.outcome,
		"replay":   tx.unchanged,
	}).Info("approval action submitted")
	return tx.outcome, nil
}

func (t *transition) act(ctx context.Context, request *ActionRequest) error {
	inst := t.inst
	if inst.Status.Terminal() {
		return types.NewError(types.CodeInstanceNotActive, "instance %v is %v", inst.ID, inst.Status)
	}
	nodeID := request.NodeID
	if nodeID == "" {
		if nodeID = t.pendingNode(request.ApproverID); nodeID == "" {
			return types.NewError(types.CodeNotAuthorized, "approver %v has no pending task on instance %v", request.ApproverID, inst.ID)
		}
	}
	node := t.graph.Node(nodeID)
	cfg := node.Approval()
	if cfg == nil {
		return types.NewError(types.CodeInvalidRequest, "node %v is not an approval node", nodeID)
	}
	pos := inst.ActiveAt(nodeID)
	if pos == nil || pos.Visit == 0 {
		return t.late(request, node)
	}
	if !cfg.Allows(request.Action) {
		return types.NewError(types.CodeActionNotAllowed, "%v is not allowed on node %v", request.Action, nodeID)
	}
	visit := inst.Visit(nodeID, pos.Visit)
	if visit == nil {
		return types.NewError(types.CodeEvaluationFailed, "visit %d of node %v not found", pos.Visit, nodeID)
	}
	records := inst.Records(nodeID, pos.Visit)
	if approval.IsReplay(records, request.ApproverID, request.Action, request.DelegateTo) {
		t.outcome = approval.Evaluate(cfg, visit.Approvers, records)
		return errUnchanged
	}
	if !approval.Holds(cfg, visit.Approvers, records, request.ApproverID) {
		return types.NewError(types.CodeNotAuthorized, "approver %v is not assigned to node %v", request.ApproverID, nodeID)
	}
	record := t.submit(request, nodeID, pos.Visit)
	t.emit(event.TypeActionRecorded, pos, nodeID, event.Detail{
		ApproverID: record.ApproverID,
		Action:     record.Action,
		DelegateTo: record.DelegateTo,
	})
	records = append(records, record)
	t.outcome = approval.Evaluate(cfg, visit.Approvers, records)
	if t.outcome.Resolved() {
		return t.decide(ctx, pos, node, t.outcome)
	}
	pos.Pending = approval.Pending(cfg, visit.Approvers, records)
	if request.Action == instance.ActionDelegate {
		t.emit(event.TypeApproversAssigned, pos, nodeID, event.Detail{Approvers: pos.Pending, TimeoutAt: pos.TimeoutAt})
	}
	return nil
}

// late records an action on a node visit that already resolved. The record
// is kept for audit but never counts; the caller learns the final outcome.
func (t *transition) late(request *ActionRequest, node *graph.Node) error {
	visit := t.inst.LastResolvedVisit(node.ID)
	if visit == nil {
		return types.NewError(types.CodeNotAuthorized, "approver %v has no task on node %v", request.ApproverID, node.ID)
	}
	records := t.inst.Records(node.ID, visit.Number)
	if !slices.Contains(visit.Approvers, request.ApproverID) && !approval.Holds(node.Approval(), visit.Approvers, records, request.ApproverID) {
		return types.NewError(types.CodeNotAuthorized, "approver %v was not assigned to node %v", request.ApproverID, node.ID)
	}
	t.outcome = approval.Outcome(visit.Outcome)
	if approval.IsReplay(records, request.ApproverID, request.Action, request.DelegateTo) {
		return errUnchanged
	}
	record := t.submit(request, node.ID, visit.Number)
	record.Ignored = true
	t.emit(event.TypeActionRecorded, nil, node.ID, event.Detail{
		ApproverID: record.ApproverID,
		Action:     record.Action,
		DelegateTo: record.DelegateTo,
		Outcome:    visit.Outcome,
	})
	return nil
}

func (t *transition) submit(request *ActionRequest, nodeID string, visit int) *instance.ApprovalRecord {
	record := t.record(nodeID, visit, request.ApproverID, request.Action, instance.SourceUser)
	record.ApproverName = request.ApproverName
	record.Comment = request.Comment
	record.DelegateTo = request.DelegateTo
	return record
}

// pendingNode returns the node of the first active position awaiting approverID.
func (t *transition) pendingNode(approverID string) string {
	for _, pos := range t.inst.Positions {
		if !pos.Waiting && slices.Contains(pos.Pending, approverID) {
			return pos.NodeID
		}
	}
	return ""
}

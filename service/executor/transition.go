package executor

import (
	"context"
	"sort"
	"time"

	"github.com/viant/approval/model"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/model/state"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/runtime/condition"
	"github.com/viant/approval/runtime/correlation"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/approval"
	"github.com/viant/approval/service/event"
	"github.com/viant/approval/service/scheduler"
)

// FaultNoApprovers is the fault code of an approval node whose rules resolved to nobody.
const FaultNoApprovers = "no_approvers"

// transition is one attempt at moving an instance. It collects the side
// effects to apply once the write commits.
type transition struct {
	service        *Service
	inst           *instance.WorkflowInstance
	graph          *graph.Graph
	now            time.Time
	document       *model.Document
	events         []*event.Event[event.Detail]
	documentStatus string
	outcome        approval.Outcome
	unchanged      bool
}

func (s *Service) newTransition(inst *instance.WorkflowInstance, now time.Time) (*transition, error) {
	def := inst.WorkflowDefinitionSnapshot
	if def == nil || def.Graph == nil {
		return nil, types.NewError(types.CodeEvaluationFailed, "instance %v has no definition snapshot", inst.ID)
	}
	if inst.Variables == nil {
		inst.Variables = state.Variables{}
	}
	return &transition{service: s, inst: inst, graph: def.Graph, now: now}, nil
}

func (t *transition) emit(eventType string, pos *instance.Position, nodeID string, detail event.Detail) {
	ctx := &event.Context{
		Type:         eventType,
		InstanceID:   t.inst.ID,
		DefinitionID: t.inst.WorkflowDefinitionID,
		DocumentID:   t.inst.DocumentID,
		TenantID:     t.inst.TenantID,
		NodeID:       nodeID,
	}
	if pos != nil {
		ctx.PositionID = pos.ID
	}
	t.events = append(t.events, event.NewEvent(ctx, detail))
}

// enter moves pos onto nodeID and runs the node until it needs input.
func (t *transition) enter(ctx context.Context, pos *instance.Position, nodeID string) error {
	node := t.graph.Node(nodeID)
	if node == nil {
		return types.NewError(types.CodeEvaluationFailed, "node %v not found in definition %v", nodeID, t.inst.WorkflowDefinitionID)
	}
	if pos.SplitID != "" && nodeID == t.graph.JoinOf(pos.SplitID) {
		return t.arrive(ctx, pos)
	}
	pos.NodeID = nodeID
	pos.Visit = 0
	pos.Pending = nil
	pos.TimeoutAt = nil
	pos.Fault = nil
	pos.History = append(pos.History, nodeID)
	t.inst.History = append(t.inst.History, nodeID)
	t.emit(event.TypeNodeEntered, pos, nodeID, event.Detail{})
	if err := t.bind(ctx, node.FormBinding()); err != nil {
		return err
	}
	switch node.Type {
	case graph.NodeTypeStart:
		return t.advance(ctx, pos)
	case graph.NodeTypeEnd:
		return t.complete(pos)
	case graph.NodeTypeApproval:
		return t.assign(ctx, pos, node)
	case graph.NodeTypeCondition:
		return t.route(ctx, pos, node)
	case graph.NodeTypeParallel:
		if node.IsSplit() {
			return t.split(ctx, pos, node)
		}
		return t.advance(ctx, pos)
	}
	return types.NewError(types.CodeEvaluationFailed, "unsupported node type %v", node.Type)
}

// advance follows the first outgoing edge of the current node.
func (t *transition) advance(ctx context.Context, pos *instance.Position) error {
	edges := t.graph.OutgoingEdges(pos.NodeID)
	if len(edges) == 0 {
		return types.NewError(types.CodeEvaluationFailed, "node %v has no outgoing edge", pos.NodeID)
	}
	return t.enter(ctx, pos, edges[0].Target)
}

func (t *transition) complete(pos *instance.Position) error {
	if pos.ID != instance.RootPositionID {
		return types.NewError(types.CodeEvaluationFailed, "branch %v reached end node %v before its join", pos.BranchID, pos.NodeID)
	}
	t.finish(instance.StatusCompleted, model.DocumentStatusApproved)
	t.emit(event.TypeInstanceCompleted, pos, pos.NodeID, event.Detail{Status: string(instance.StatusCompleted)})
	return nil
}

func (t *transition) reject(pos *instance.Position) {
	t.finish(instance.StatusRejected, model.DocumentStatusRejected)
	t.emit(event.TypeInstanceRejected, pos, pos.NodeID, event.Detail{Status: string(instance.StatusRejected)})
}

func (t *transition) finish(status instance.Status, documentStatus string) {
	t.inst.Status = status
	completedAt := t.now
	t.inst.CompletedAt = &completedAt
	t.documentStatus = documentStatus
}

// assign opens a new visit of an approval node.
func (t *transition) assign(ctx context.Context, pos *instance.Position, node *graph.Node) error {
	cfg := node.Approval()
	if cfg == nil {
		return types.NewError(types.CodeEvaluationFailed, "approval node %v has no config", node.ID)
	}
	approvers, err := t.service.resolver.ResolveNode(ctx, cfg)
	if err != nil {
		return types.WrapError(types.CodeEvaluationFailed, err, "failed to resolve approvers of node %v", node.ID)
	}
	if len(approvers) == 0 {
		t.fault(pos, node.ID, FaultNoApprovers, "no approvers resolved for node "+node.ID)
		return nil
	}
	number := t.inst.NextVisit(node.ID)
	pos.Visit = number
	pos.Pending = append([]string{}, approvers...)
	pos.TimeoutAt = scheduler.ComputeTimeoutAt(cfg, t.now)
	t.inst.Visits = append(t.inst.Visits, &instance.Visit{
		NodeID:     node.ID,
		Number:     number,
		PositionID: pos.ID,
		Approvers:  approvers,
		EnteredAt:  t.now,
	})
	t.emit(event.TypeApproversAssigned, pos, node.ID, event.Detail{Approvers: approvers, TimeoutAt: pos.TimeoutAt})
	return nil
}

// route follows the edge selected by the condition node; without a match the
// position stays and is flagged for an operator.
func (t *transition) route(ctx context.Context, pos *instance.Position, node *graph.Node) error {
	edge, err := condition.Select(t.graph, node.ID, t.inst.Variables)
	if err != nil {
		t.fault(pos, node.ID, string(types.CodeEvaluationFailed), err.Error())
		return nil
	}
	return t.enter(ctx, pos, edge.Target)
}

func (t *transition) fault(pos *instance.Position, nodeID, code, message string) {
	pos.Fault = &instance.Fault{NodeID: nodeID, PositionID: pos.ID, Code: code, Message: message, At: t.now}
	t.emit(event.TypeConditionFault, pos, nodeID, event.Detail{Code: code, Reason: message})
}

// split parks pos at the gateway and starts one child position per branch.
func (t *transition) split(ctx context.Context, pos *instance.Position, node *graph.Node) error {
	pos.Waiting = true
	correlation.Reset(t.inst, node.ID)
	for _, branch := range node.Parallel().Branches {
		child := &instance.Position{
			ID:       pos.ID + "/" + branch,
			ParentID: pos.ID,
			SplitID:  node.ID,
			BranchID: branch,
		}
		t.inst.Positions = append(t.inst.Positions, child)
		if err := t.enter(ctx, child, branch); err != nil {
			return err
		}
		if t.inst.Status.Terminal() {
			return nil
		}
	}
	return nil
}

// arrive completes a branch at its join; the last arrival releases the parent.
func (t *transition) arrive(ctx context.Context, pos *instance.Position) error {
	joinID := t.graph.JoinOf(pos.SplitID)
	ready := correlation.RecordBranchComplete(t.inst, pos.SplitID, pos.BranchID)
	t.emit(event.TypeBranchCompleted, pos, joinID, event.Detail{Remaining: correlation.Remaining(t.inst, pos.SplitID)})
	t.inst.RemovePosition(pos.ID)
	if !ready {
		return nil
	}
	parent := t.inst.Position(pos.ParentID)
	if parent == nil {
		return types.NewError(types.CodeEvaluationFailed, "parent position %v of branch %v not found", pos.ParentID, pos.BranchID)
	}
	parent.Waiting = false
	return t.enter(ctx, parent, joinID)
}

// decide moves pos off an approval node once its visit resolved.
func (t *transition) decide(ctx context.Context, pos *instance.Position, node *graph.Node, outcome approval.Outcome) error {
	if visit := t.inst.Visit(node.ID, pos.Visit); visit != nil {
		visit.Outcome = string(outcome)
		resolvedAt := t.now
		visit.ResolvedAt = &resolvedAt
	}
	pos.Pending = nil
	pos.TimeoutAt = nil
	switch outcome {
	case approval.OutcomeSatisfied:
		return t.advance(ctx, pos)
	case approval.OutcomeRejected:
		t.reject(pos)
		return nil
	case approval.OutcomeReturned:
		return t.enter(ctx, pos, t.returnTarget(pos, node))
	}
	return nil
}

// returnTarget picks the configured returnTo node when the position passed
// through it, else the latest earlier approval node, else the node itself.
func (t *transition) returnTarget(pos *instance.Position, node *graph.Node) string {
	history := pos.History
	if n := len(history); n > 0 && history[n-1] == node.ID {
		history = history[:n-1]
	}
	if cfg := node.Approval(); cfg != nil && cfg.ReturnTo != "" {
		for _, id := range history {
			if id == cfg.ReturnTo {
				return id
			}
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if candidate := t.graph.Node(history[i]); candidate != nil && candidate.ID != node.ID && candidate.Type == graph.NodeTypeApproval {
			return candidate.ID
		}
	}
	return node.ID
}

// bind seeds variables from a form binding. Values overwrite per key and a
// missing source field leaves the variable untouched.
func (t *transition) bind(ctx context.Context, binding *graph.FormBinding) error {
	if binding == nil {
		return nil
	}
	fields := binding.Fields
	if len(fields) == 0 {
		fields = map[string]string{}
		for _, name := range t.inst.FormDefinitionSnapshots[binding.FormID].FieldNames() {
			fields[name] = name
		}
	}
	sources := make([]string, 0, len(fields))
	for source := range fields {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	switch binding.Target {
	case graph.BindDocument:
		doc, err := t.loadDocument(ctx)
		if err != nil {
			return err
		}
		for _, source := range sources {
			value, ok := doc.Fields[source]
			if !ok {
				continue
			}
			if err = t.inst.Variables.Set(fields[source], value); err != nil {
				return types.WrapError(types.CodeEvaluationFailed, err, "failed to bind field %v of form %v", source, binding.FormID)
			}
		}
	case graph.BindVariables:
		current := t.inst.Variables.Clone()
		for _, source := range sources {
			if value, ok := current.Lookup(source); ok {
				t.inst.Variables[fields[source]] = value
			}
		}
	}
	return nil
}

func (t *transition) loadDocument(ctx context.Context) (*model.Document, error) {
	if t.document != nil {
		return t.document, nil
	}
	doc, err := t.service.documents.GetDocument(ctx, t.inst.DocumentID)
	if err != nil {
		return nil, err
	}
	t.document = doc
	return doc, nil
}

func (t *transition) record(nodeID string, visit int, approverID, action, source string) *instance.ApprovalRecord {
	record := &instance.ApprovalRecord{
		InstanceID: t.inst.ID,
		NodeID:     nodeID,
		ApproverID: approverID,
		Action:     action,
		Timestamp:  t.now,
		Sequence:   t.inst.NextSequence(nodeID),
		Visit:      visit,
		Source:     source,
	}
	t.inst.ApprovalRecords = append(t.inst.ApprovalRecords, record)
	return record
}

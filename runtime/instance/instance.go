package instance

import (
	"sort"
	"time"

	"github.com/viant/approval/model"
	"github.com/viant/approval/model/state"
)

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusRejected  Status = "Rejected"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// RootPositionID identifies the main execution cursor.
const RootPositionID = "main"

type (
	// WorkflowInstance is one execution of a definition snapshot. It is
	// mutated only through the executor and persisted as a single document
	// guarded by Version.
	WorkflowInstance struct {
		ID                         string                           `json:"id"`
		WorkflowDefinitionID       string                           `json:"workflowDefinitionId"`
		DocumentID                 string                           `json:"documentId"`
		TenantID                   string                           `json:"tenantId,omitempty"`
		Status                     Status                           `json:"status"`
		CurrentNodeID              string                           `json:"currentNodeId"`
		Variables                  state.Variables                  `json:"variables"`
		ApprovalRecords            []*ApprovalRecord                `json:"approvalRecords"`
		CurrentApproverIDs         []string                         `json:"currentApproverIds"`
		TimeoutAt                  *time.Time                       `json:"timeoutAt,omitempty"`
		ParallelBranches           map[string][]string              `json:"parallelBranches,omitempty"`
		StartedBy                  string                           `json:"startedBy,omitempty"`
		StartedAt                  time.Time                        `json:"startedAt"`
		CompletedAt                *time.Time                       `json:"completedAt,omitempty"`
		WorkflowDefinitionSnapshot *model.WorkflowDefinition        `json:"workflowDefinitionSnapshot"`
		FormDefinitionSnapshots    map[string]*model.FormDefinition `json:"formDefinitionSnapshots,omitempty"`
		Positions                  []*Position                      `json:"positions"`
		Visits                     []*Visit                         `json:"visits,omitempty"`
		History                    []string                         `json:"history"`
		Faults                     []*Fault                         `json:"faults,omitempty"`
		CancelReason               string                           `json:"cancelReason,omitempty"`
		Version                    int64                            `json:"version"`
		UpdatedAt                  time.Time                        `json:"updatedAt"`
	}

	// Position is an active cursor in the graph. The root position follows
	// the main path; every parallel branch runs in a child position.
	Position struct {
		ID        string     `json:"id"`
		ParentID  string     `json:"parentId,omitempty"`
		SplitID   string     `json:"splitId,omitempty"`
		BranchID  string     `json:"branchId,omitempty"`
		NodeID    string     `json:"nodeId"`
		Visit     int        `json:"visit,omitempty"`
		Pending   []string   `json:"pending,omitempty"`
		TimeoutAt *time.Time `json:"timeoutAt,omitempty"`
		// Waiting marks a position parked at a split until its join is ready.
		Waiting bool     `json:"waiting,omitempty"`
		History []string `json:"history,omitempty"`
		// Fault holds the position at its node until an operator retries it.
		Fault *Fault `json:"fault,omitempty"`
	}

	// Visit records one entry into an approval node and the approver slots resolved for it.
	Visit struct {
		NodeID     string     `json:"nodeId"`
		Number     int        `json:"number"`
		PositionID string     `json:"positionId"`
		Approvers  []string   `json:"approvers"`
		EnteredAt  time.Time  `json:"enteredAt"`
		Outcome    string     `json:"outcome,omitempty"`
		ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	}

	// Fault flags a position held for operator intervention.
	Fault struct {
		NodeID     string    `json:"nodeId"`
		PositionID string    `json:"positionId"`
		Code       string    `json:"code"`
		Message    string    `json:"message"`
		At         time.Time `json:"at"`
	}
)

// Root returns the main position.
func (w *WorkflowInstance) Root() *Position {
	return w.Position(RootPositionID)
}

// Position returns a position by id or nil.
func (w *WorkflowInstance) Position(id string) *Position {
	for _, pos := range w.Positions {
		if pos.ID == id {
			return pos
		}
	}
	return nil
}

// ActiveAt returns the non-waiting position currently at nodeID.
func (w *WorkflowInstance) ActiveAt(nodeID string) *Position {
	for _, pos := range w.Positions {
		if pos.NodeID == nodeID && !pos.Waiting {
			return pos
		}
	}
	return nil
}

// Faulted returns the faulted positions in position order.
func (w *WorkflowInstance) Faulted() []*Position {
	var result []*Position
	for _, pos := range w.Positions {
		if pos.Fault != nil {
			result = append(result, pos)
		}
	}
	return result
}

// RemovePosition drops a position.
func (w *WorkflowInstance) RemovePosition(id string) {
	for i, pos := range w.Positions {
		if pos.ID == id {
			w.Positions = append(w.Positions[:i], w.Positions[i+1:]...)
			return
		}
	}
}

// NextVisit returns the next visit number for nodeID.
func (w *WorkflowInstance) NextVisit(nodeID string) int {
	number := 0
	for _, visit := range w.Visits {
		if visit.NodeID == nodeID && visit.Number > number {
			number = visit.Number
		}
	}
	return number + 1
}

// Visit returns a node visit or nil.
func (w *WorkflowInstance) Visit(nodeID string, number int) *Visit {
	for _, visit := range w.Visits {
		if visit.NodeID == nodeID && visit.Number == number {
			return visit
		}
	}
	return nil
}

// LastResolvedVisit returns the latest resolved visit of nodeID or nil.
func (w *WorkflowInstance) LastResolvedVisit(nodeID string) *Visit {
	var ret *Visit
	for _, visit := range w.Visits {
		if visit.NodeID == nodeID && visit.Outcome != "" && (ret == nil || visit.Number > ret.Number) {
			ret = visit
		}
	}
	return ret
}

// Records returns the approval records of a node visit ordered by sequence.
func (w *WorkflowInstance) Records(nodeID string, visit int) []*ApprovalRecord {
	var result []*ApprovalRecord
	for _, record := range w.ApprovalRecords {
		if record.NodeID == nodeID && record.Visit == visit {
			result = append(result, record)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result
}

// NextSequence returns the next per-node record sequence.
func (w *WorkflowInstance) NextSequence(nodeID string) int {
	sequence := 0
	for _, record := range w.ApprovalRecords {
		if record.NodeID == nodeID && record.Sequence > sequence {
			sequence = record.Sequence
		}
	}
	return sequence + 1
}

// Refresh recomputes the denormalised fields from positions.
func (w *WorkflowInstance) Refresh(now time.Time) {
	w.UpdatedAt = now
	if root := w.Root(); root != nil {
		w.CurrentNodeID = root.NodeID
	}
	w.CurrentApproverIDs = nil
	w.TimeoutAt = nil
	w.Faults = nil
	if w.Status.Terminal() {
		for _, pos := range w.Positions {
			pos.Pending = nil
			pos.TimeoutAt = nil
			pos.Fault = nil
		}
		return
	}
	seen := map[string]bool{}
	for _, pos := range w.Positions {
		if pos.Fault != nil {
			w.Faults = append(w.Faults, pos.Fault)
		}
		if pos.Waiting {
			continue
		}
		for _, approver := range pos.Pending {
			if !seen[approver] {
				seen[approver] = true
				w.CurrentApproverIDs = append(w.CurrentApproverIDs, approver)
			}
		}
		if pos.TimeoutAt != nil && (w.TimeoutAt == nil || pos.TimeoutAt.Before(*w.TimeoutAt)) {
			deadline := *pos.TimeoutAt
			w.TimeoutAt = &deadline
		}
	}
}

// IsPendingFor reports whether approverID is in the current approver set.
func (w *WorkflowInstance) IsPendingFor(approverID string) bool {
	return contains(w.CurrentApproverIDs, approverID)
}

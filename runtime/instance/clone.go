package instance

import (
	"time"

	"github.com/viant/approval/model"
)

// Clone returns a copy safe to mutate. The definition snapshot is immutable
// and shared.
func (w *WorkflowInstance) Clone() *WorkflowInstance {
	if w == nil {
		return nil
	}
	ret := *w
	ret.Variables = w.Variables.Clone()
	ret.ApprovalRecords = make([]*ApprovalRecord, len(w.ApprovalRecords))
	for i, record := range w.ApprovalRecords {
		copied := *record
		ret.ApprovalRecords[i] = &copied
	}
	ret.CurrentApproverIDs = cloneStrings(w.CurrentApproverIDs)
	ret.TimeoutAt = cloneTime(w.TimeoutAt)
	ret.CompletedAt = cloneTime(w.CompletedAt)
	if w.ParallelBranches != nil {
		ret.ParallelBranches = make(map[string][]string, len(w.ParallelBranches))
		for k, v := range w.ParallelBranches {
			ret.ParallelBranches[k] = cloneStrings(v)
		}
	}
	ret.Positions = make([]*Position, len(w.Positions))
	for i, pos := range w.Positions {
		ret.Positions[i] = pos.Clone()
	}
	ret.Visits = make([]*Visit, len(w.Visits))
	for i, visit := range w.Visits {
		copied := *visit
		copied.Approvers = cloneStrings(visit.Approvers)
		copied.ResolvedAt = cloneTime(visit.ResolvedAt)
		ret.Visits[i] = &copied
	}
	ret.History = cloneStrings(w.History)
	if w.FormDefinitionSnapshots != nil {
		ret.FormDefinitionSnapshots = make(map[string]*model.FormDefinition, len(w.FormDefinitionSnapshots))
		for k, v := range w.FormDefinitionSnapshots {
			ret.FormDefinitionSnapshots[k] = v.Clone()
		}
	}
	ret.Faults = nil
	for _, pos := range ret.Positions {
		if pos.Fault != nil {
			ret.Faults = append(ret.Faults, pos.Fault)
		}
	}
	return &ret
}

// Clone copies a position.
func (p *Position) Clone() *Position {
	ret := *p
	ret.Pending = cloneStrings(p.Pending)
	ret.History = cloneStrings(p.History)
	ret.TimeoutAt = cloneTime(p.TimeoutAt)
	if p.Fault != nil {
		fault := *p.Fault
		ret.Fault = &fault
	}
	return &ret
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string{}, values...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ret := *t
	return &ret
}

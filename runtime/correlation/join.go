package correlation

import (
	"sort"

	"github.com/viant/approval/runtime/instance"
)

// RecordBranchComplete adds branchID to the completed set of splitID and
// reports whether every declared branch has arrived. Repeated arrivals of
// the same branch are ignored and the set never shrinks while the split is open.
func RecordBranchComplete(inst *instance.WorkflowInstance, splitID, branchID string) bool {
	if inst.ParallelBranches == nil {
		inst.ParallelBranches = map[string][]string{}
	}
	completed := inst.ParallelBranches[splitID]
	index := sort.SearchStrings(completed, branchID)
	if index == len(completed) || completed[index] != branchID {
		completed = append(completed, "")
		copy(completed[index+1:], completed[index:])
		completed[index] = branchID
		inst.ParallelBranches[splitID] = completed
	}
	return Ready(inst, splitID)
}

// Ready reports whether the completed set of splitID covers the declared branches.
func Ready(inst *instance.WorkflowInstance, splitID string) bool {
	declared := Branches(inst, splitID)
	if len(declared) == 0 {
		return false
	}
	completed := inst.ParallelBranches[splitID]
	for _, branch := range declared {
		index := sort.SearchStrings(completed, branch)
		if index == len(completed) || completed[index] != branch {
			return false
		}
	}
	return true
}

// Remaining returns the declared branches that have not completed, in declaration order.
func Remaining(inst *instance.WorkflowInstance, splitID string) []string {
	var result []string
	completed := inst.ParallelBranches[splitID]
	for _, branch := range Branches(inst, splitID) {
		index := sort.SearchStrings(completed, branch)
		if index == len(completed) || completed[index] != branch {
			result = append(result, branch)
		}
	}
	return result
}

// Reset clears the completed set so a split can be entered again.
func Reset(inst *instance.WorkflowInstance, splitID string) {
	delete(inst.ParallelBranches, splitID)
}

// Branches returns the branch node ids declared on splitID.
func Branches(inst *instance.WorkflowInstance, splitID string) []string {
	def := inst.WorkflowDefinitionSnapshot
	if def == nil || def.Graph == nil {
		return nil
	}
	if cfg := def.Graph.Node(splitID).Parallel(); cfg != nil {
		return cfg.Branches
	}
	return nil
}

package approval

import (
	"sort"

	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/runtime/instance"
)

// slot is one required decision. A delegation moves the slot to another holder
// and clears the decision taken so far.
type slot struct {
	holder   string
	decision string
}

type tally struct {
	config *graph.ApprovalConfig
	slots  []*slot
}

func newTally(config *graph.ApprovalConfig, approvers []string) *tally {
	ret := &tally{config: config}
	seen := map[string]bool{}
	for _, approver := range approvers {
		if seen[approver] {
			continue
		}
		seen[approver] = true
		ret.slots = append(ret.slots, &slot{holder: approver})
	}
	return ret
}

func (t *tally) allows(action string) bool {
	if t.config == nil {
		return action == instance.ActionApprove
	}
	return t.config.Allows(action)
}

// apply folds a record into the slots held by its approver.
func (t *tally) apply(record *instance.ApprovalRecord) {
	if record.Ignored || !t.allows(record.Action) {
		return
	}
	for _, s := range t.slots {
		if s.holder != record.ApproverID {
			continue
		}
		switch record.Action {
		case instance.ActionDelegate:
			if record.DelegateTo == "" {
				continue
			}
			s.holder = record.DelegateTo
			s.decision = ""
		default:
			s.decision = record.Action
		}
	}
}

func (t *tally) outcome() Outcome {
	if len(t.slots) == 0 {
		return OutcomePending
	}
	approved, returned := 0, false
	for _, s := range t.slots {
		switch s.decision {
		case instance.ActionReject:
			return OutcomeRejected
		case instance.ActionReturn:
			returned = true
		case instance.ActionApprove:
			approved++
		}
	}
	if returned {
		return OutcomeReturned
	}
	if t.config != nil && t.config.ApprovalType == graph.ApprovalAny {
		if approved > 0 {
			return OutcomeSatisfied
		}
		return OutcomePending
	}
	if approved == len(t.slots) {
		return OutcomeSatisfied
	}
	return OutcomePending
}

// replay folds records in sequence order and stops at the first resolution;
// later records cannot reopen a resolved visit.
func replay(config *graph.ApprovalConfig, approvers []string, records []*instance.ApprovalRecord) (*tally, Outcome) {
	t := newTally(config, approvers)
	ordered := append([]*instance.ApprovalRecord{}, records...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })
	for _, record := range ordered {
		t.apply(record)
		if outcome := t.outcome(); outcome.Resolved() {
			return t, outcome
		}
	}
	return t, OutcomePending
}

// Evaluate returns the outcome of a node visit given its approver slots and records.
// A rejection wins over a return; All needs every slot approved, Any needs one.
func Evaluate(config *graph.ApprovalConfig, approvers []string, records []*instance.ApprovalRecord) Outcome {
	_, outcome := replay(config, approvers, records)
	return outcome
}

// Pending returns the current holders of undecided slots in slot order.
func Pending(config *graph.ApprovalConfig, approvers []string, records []*instance.ApprovalRecord) []string {
	t, outcome := replay(config, approvers, records)
	if outcome.Resolved() {
		return nil
	}
	var result []string
	seen := map[string]bool{}
	for _, s := range t.slots {
		if s.decision != "" || seen[s.holder] {
			continue
		}
		seen[s.holder] = true
		result = append(result, s.holder)
	}
	return result
}

// Holds reports whether approverID currently holds at least one slot.
func Holds(config *graph.ApprovalConfig, approvers []string, records []*instance.ApprovalRecord, approverID string) bool {
	t, _ := replay(config, approvers, records)
	for _, s := range t.slots {
		if s.holder == approverID {
			return true
		}
	}
	return false
}

// IsReplay reports whether the latest action of approverID on the visit equals
// the submitted one, making the submission a no-op. Late records count, so a
// repeated late action is deduplicated as well.
func IsReplay(records []*instance.ApprovalRecord, approverID, action, delegateTo string) bool {
	var latest *instance.ApprovalRecord
	for _, record := range records {
		if record.ApproverID != approverID {
			continue
		}
		if latest == nil || record.Sequence > latest.Sequence {
			latest = record
		}
	}
	if latest == nil {
		return false
	}
	return latest.Action == action && latest.DelegateTo == delegateTo
}

package approval

// Outcome is the aggregated state of an approval node visit.
type Outcome string

const (
	OutcomePending   Outcome = "Pending"
	OutcomeSatisfied Outcome = "Satisfied"
	OutcomeRejected  Outcome = "Rejected"
	OutcomeReturned  Outcome = "Returned"
)

// Resolved reports whether the outcome moves the instance off the node.
func (o Outcome) Resolved() bool {
	return o != OutcomePending && o != ""
}

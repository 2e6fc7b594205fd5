package instance

import "time"

// Action kinds an approver may submit.
const (
	ActionApprove  = "Approve"
	ActionReject   = "Reject"
	ActionReturn   = "Return"
	ActionDelegate = "Delegate"
)

// Record sources.
const (
	SourceUser    = "user"
	SourceTimeout = "timeout"
)

// ApprovalRecord is an append-only entry of an approver action.
type ApprovalRecord struct {
	InstanceID   string    `json:"instanceId"`
	NodeID       string    `json:"nodeId"`
	ApproverID   string    `json:"approverId"`
	ApproverName string    `json:"approverName,omitempty"`
	Action       string    `json:"action"`
	Comment      string    `json:"comment,omitempty"`
	DelegateTo   string    `json:"delegateTo,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Sequence     int       `json:"sequence"`
	Visit        int       `json:"visit"`
	// Ignored is set on actions that arrived after their node resolved.
	Ignored bool   `json:"ignored,omitempty"`
	Source  string `json:"source,omitempty"`
}

// ValidAction reports whether action is a known kind.
func ValidAction(action string) bool {
	switch action {
	case ActionApprove, ActionReject, ActionReturn, ActionDelegate:
		return true
	}
	return false
}

package event

import "time"

// Event types published by the executor.
const (
	TypeInstanceStarted   = "instance.started"
	TypeNodeEntered       = "node.entered"
	TypeApproversAssigned = "approvers.assigned"
	TypeActionRecorded    = "action.recorded"
	TypeInstanceCompleted = "instance.completed"
	TypeInstanceRejected  = "instance.rejected"
	TypeInstanceCancelled = "instance.cancelled"
	TypeConditionFault    = "condition.fault"
	TypeBranchCompleted   = "branch.completed"
	TypeTimeoutFired      = "timeout.fired"
)

// Context identifies what an event is about.
type Context struct {
	Type         string `json:"type"`
	InstanceID   string `json:"instanceId"`
	DefinitionID string `json:"definitionId,omitempty"`
	DocumentID   string `json:"documentId,omitempty"`
	TenantID     string `json:"tenantId,omitempty"`
	NodeID       string `json:"nodeId,omitempty"`
	PositionID   string `json:"positionId,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:  context,
		Metadata: make(map[string]interface{}),
		Data:     data,
	}
}

// Detail is the payload of workflow events; fields are set per event type.
type Detail struct {
	Approvers  []string   `json:"approvers,omitempty"`
	ApproverID string     `json:"approverId,omitempty"`
	Action     string     `json:"action,omitempty"`
	DelegateTo string     `json:"delegateTo,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
	Status     string     `json:"status,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Code       string     `json:"code,omitempty"`
	Remaining  []string   `json:"remaining,omitempty"`
	TimeoutAt  *time.Time `json:"timeoutAt,omitempty"`
}

package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the node configuration sum type. Implementations are limited to
// ApprovalConfig, ConditionConfig, ParallelConfig and FormBinding.
type Config interface {
	configOf() NodeType
}

// ApprovalType selects the aggregation rule of an approval node.
type ApprovalType string

const (
	ApprovalAll ApprovalType = "All"
	ApprovalAny ApprovalType = "Any"
)

// ApproverType selects how an approver rule is expanded.
type ApproverType string

const (
	ApproverUser       ApproverType = "User"
	ApproverRole       ApproverType = "Role"
	ApproverDepartment ApproverType = "Department"
)

// Timeout actions applied when an approval node deadline passes.
const (
	TimeoutActionNone     = "none"
	TimeoutActionEscalate = "escalate"
	TimeoutActionApprove  = "approve"
	TimeoutActionReject   = "reject"
)

// Form binding targets.
const (
	BindDocument  = "document"
	BindVariables = "variables"
)

type (
	ApproverRule struct {
		Type        ApproverType `json:"type" yaml:"type"`
		ReferenceID string       `json:"referenceId" yaml:"referenceId"`
	}

	ApprovalConfig struct {
		ApprovalType  ApprovalType   `json:"approvalType" yaml:"approvalType"`
		Approvers     []ApproverRule `json:"approvers" yaml:"approvers"`
		AllowDelegate bool           `json:"allowDelegate,omitempty" yaml:"allowDelegate,omitempty"`
		AllowReject   bool           `json:"allowReject,omitempty" yaml:"allowReject,omitempty"`
		AllowReturn   bool           `json:"allowReturn,omitempty" yaml:"allowReturn,omitempty"`
		TimeoutHours  float64        `json:"timeoutHours,omitempty" yaml:"timeoutHours,omitempty"`
		// TimeoutAction overrides the engine default policy for this node.
		TimeoutAction string `json:"timeoutAction,omitempty" yaml:"timeoutAction,omitempty"`
		// EscalateTo lists approvers added when the escalate policy fires.
		EscalateTo []ApproverRule `json:"escalateTo,omitempty" yaml:"escalateTo,omitempty"`
		// ReturnTo is an explicit return target; the previous approval node is used when empty.
		ReturnTo string       `json:"returnTo,omitempty" yaml:"returnTo,omitempty"`
		Form     *FormBinding `json:"form,omitempty" yaml:"form,omitempty"`
	}

	ConditionConfig struct {
		DefaultEdgeID string `json:"defaultEdgeId,omitempty" yaml:"defaultEdgeId,omitempty"`
	}

	ParallelConfig struct {
		// Branches lists branch entry node ids; an empty list marks a join gateway.
		Branches   []string `json:"branches,omitempty" yaml:"branches,omitempty"`
		JoinNodeID string   `json:"joinNodeId,omitempty" yaml:"joinNodeId,omitempty"`
	}

	// FormBinding seeds instance variables when the node is entered.
	FormBinding struct {
		FormID string `json:"formId" yaml:"formId"`
		// Target is either "document" (read document fields) or "variables" (copy instance variables).
		Target string `json:"target" yaml:"target"`
		// Fields maps a source field to a variable name; empty means every form field under its own name.
		Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
	}
)

func (c *ApprovalConfig) configOf() NodeType  { return NodeTypeApproval }
func (c *ConditionConfig) configOf() NodeType { return NodeTypeCondition }
func (c *ParallelConfig) configOf() NodeType  { return NodeTypeParallel }
func (c *FormBinding) configOf() NodeType     { return NodeTypeStart }

// Allows reports whether the action kind is enabled on the node.
func (c *ApprovalConfig) Allows(action string) bool {
	switch action {
	case "Approve":
		return true
	case "Reject":
		return c.AllowReject
	case "Return":
		return c.AllowReturn
	case "Delegate":
		return c.AllowDelegate
	}
	return false
}

// matches reports whether the config variant is legal for the node type.
func matches(t NodeType, cfg Config) bool {
	if cfg == nil {
		return true
	}
	switch cfg.(type) {
	case *FormBinding:
		return t == NodeTypeStart || t == NodeTypeEnd
	default:
		return cfg.configOf() == t
	}
}

// newConfig returns an empty variant for the node type.
func newConfig(t NodeType) (Config, error) {
	switch t {
	case NodeTypeApproval:
		return &ApprovalConfig{}, nil
	case NodeTypeCondition:
		return &ConditionConfig{}, nil
	case NodeTypeParallel:
		return &ParallelConfig{}, nil
	case NodeTypeStart, NodeTypeEnd:
		return &FormBinding{}, nil
	}
	return nil, fmt.Errorf("unsupported node type: %q", t)
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Label    string          `json:"label,omitempty"`
	Position *Point          `json:"position,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON decodes the config variant selected by type.
func (n *Node) UnmarshalJSON(data []byte) error {
	aux := nodeJSON{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.ID, n.Type, n.Label, n.Position, n.Config = aux.ID, aux.Type, aux.Label, aux.Position, nil
	raw := bytes.TrimSpace(aux.Config)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	cfg, err := newConfig(aux.Type)
	if err != nil {
		return fmt.Errorf("node %v: %w", aux.ID, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err = decoder.Decode(cfg); err != nil {
		return fmt.Errorf("node %v: invalid %v config: %w", aux.ID, aux.Type, err)
	}
	n.Config = cfg
	return nil
}

type nodeYAML struct {
	ID       string    `yaml:"id"`
	Type     NodeType  `yaml:"type"`
	Label    string    `yaml:"label,omitempty"`
	Position *Point    `yaml:"position,omitempty"`
	Config   yaml.Node `yaml:"config,omitempty"`
}

// UnmarshalYAML decodes the config variant selected by type.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	aux := nodeYAML{}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	n.ID, n.Type, n.Label, n.Position, n.Config = aux.ID, aux.Type, aux.Label, aux.Position, nil
	if aux.Config.Kind == 0 || aux.Config.Tag == "!!null" {
		return nil
	}
	cfg, err := newConfig(aux.Type)
	if err != nil {
		return fmt.Errorf("node %v: %w", aux.ID, err)
	}
	if err = aux.Config.Decode(cfg); err != nil {
		return fmt.Errorf("node %v: invalid %v config: %w", aux.ID, aux.Type, err)
	}
	n.Config = cfg
	return nil
}

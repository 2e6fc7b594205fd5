package graph

// NodeType identifies the behaviour of a node.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeApproval  NodeType = "approval"
	NodeTypeCondition NodeType = "condition"
	NodeTypeParallel  NodeType = "parallel"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeStart, NodeTypeEnd, NodeTypeApproval, NodeTypeCondition, NodeTypeParallel:
		return true
	}
	return false
}

type (
	// Node is a single vertex of a workflow graph.
	Node struct {
		ID       string   `json:"id" yaml:"id"`
		Type     NodeType `json:"type" yaml:"type"`
		Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
		Position *Point   `json:"position,omitempty" yaml:"position,omitempty"`
		// Config holds the variant selected by Type, nil when the node needs none.
		Config Config `json:"config,omitempty" yaml:"config,omitempty"`
	}

	// Point is a presentation-only canvas location.
	Point struct {
		X float64 `json:"x" yaml:"x"`
		Y float64 `json:"y" yaml:"y"`
	}

	// Edge connects two nodes.
	Edge struct {
		ID        string `json:"id" yaml:"id"`
		Source    string `json:"source" yaml:"source"`
		Target    string `json:"target" yaml:"target"`
		Label     string `json:"label,omitempty" yaml:"label,omitempty"`
		Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	}
)

// Approval returns the approval config or nil.
func (n *Node) Approval() *ApprovalConfig {
	if n == nil {
		return nil
	}
	ret, _ := n.Config.(*ApprovalConfig)
	return ret
}

// Condition returns the condition config or nil.
func (n *Node) Condition() *ConditionConfig {
	if n == nil {
		return nil
	}
	ret, _ := n.Config.(*ConditionConfig)
	return ret
}

// Parallel returns the parallel config or nil.
func (n *Node) Parallel() *ParallelConfig {
	if n == nil {
		return nil
	}
	ret, _ := n.Config.(*ParallelConfig)
	return ret
}

// FormBinding returns the node form binding, either declared directly or nested in an approval config.
func (n *Node) FormBinding() *FormBinding {
	if n == nil {
		return nil
	}
	switch actual := n.Config.(type) {
	case *FormBinding:
		return actual
	case *ApprovalConfig:
		return actual.Form
	}
	return nil
}

// IsSplit reports whether the node fans out into branches.
func (n *Node) IsSplit() bool {
	cfg := n.Parallel()
	return n.Type == NodeTypeParallel && cfg != nil && len(cfg.Branches) > 0
}

// IsDefault reports whether the edge carries no condition.
func (e *Edge) IsDefault() bool {
	return e.Condition == ""
}

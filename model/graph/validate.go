package graph

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ValidationError describes a single structural problem of a graph.
type ValidationError struct {
	NodeID  string `json:"nodeId,omitempty"`
	EdgeID  string `json:"edgeId,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	switch {
	case e.NodeID != "":
		return fmt.Sprintf("node %v: %v", e.NodeID, e.Message)
	case e.EdgeID != "":
		return fmt.Sprintf("edge %v: %v", e.EdgeID, e.Message)
	}
	return e.Message
}

// ValidationErrors is a list of validation problems.
type ValidationErrors []ValidationError

// Err aggregates the problems into a single error or returns nil.
func (v ValidationErrors) Err() error {
	var result *multierror.Error
	for _, item := range v {
		result = multierror.Append(result, item)
	}
	return result.ErrorOrNil()
}

type validator struct {
	graph  *Graph
	issues ValidationErrors
}

func (v *validator) nodeIssue(nodeID, format string, args ...interface{}) {
	v.issues = append(v.issues, ValidationError{NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) edgeIssue(edgeID, format string, args ...interface{}) {
	v.issues = append(v.issues, ValidationError{EdgeID: edgeID, Message: fmt.Sprintf(format, args...)})
}

// Validate checks structural graph rules. Condition expression syntax is
// checked separately by the condition package.
func Validate(g *Graph) ValidationErrors {
	if g == nil {
		return ValidationErrors{{Message: "graph is nil"}}
	}
	v := &validator{graph: g}
	v.checkNodes()
	v.checkEdges()
	if len(v.issues) > 0 {
		// topology checks assume sound node and edge references
		return v.issues
	}
	v.checkDegrees()
	v.checkConfigs()
	if !v.checkAcyclic() {
		return v.issues
	}
	v.checkReachability()
	v.checkBranches()
	return v.issues
}

func (v *validator) checkNodes() {
	seen := map[string]bool{}
	starts := 0
	for i, node := range v.graph.Nodes {
		if node == nil {
			v.issues = append(v.issues, ValidationError{Message: fmt.Sprintf("node[%d] is nil", i)})
			continue
		}
		if node.ID == "" {
			v.issues = append(v.issues, ValidationError{Message: fmt.Sprintf("node[%d] has empty id", i)})
			continue
		}
		if seen[node.ID] {
			v.nodeIssue(node.ID, "duplicate node id")
			continue
		}
		seen[node.ID] = true
		if !node.Type.Valid() {
			v.nodeIssue(node.ID, "unsupported type %q", node.Type)
			continue
		}
		if node.Type == NodeTypeStart {
			starts++
		}
		if !matches(node.Type, node.Config) {
			v.nodeIssue(node.ID, "config %T does not match type %v", node.Config, node.Type)
		}
	}
	if starts != 1 {
		v.issues = append(v.issues, ValidationError{Message: fmt.Sprintf("expected exactly one start node, found %d", starts)})
	}
}

func (v *validator) checkEdges() {
	seen := map[string]bool{}
	for i, edge := range v.graph.Edges {
		if edge == nil {
			v.issues = append(v.issues, ValidationError{Message: fmt.Sprintf("edge[%d] is nil", i)})
			continue
		}
		if edge.ID == "" {
			v.issues = append(v.issues, ValidationError{Message: fmt.Sprintf("edge[%d] has empty id", i)})
			continue
		}
		if seen[edge.ID] {
			v.edgeIssue(edge.ID, "duplicate edge id")
		}
		seen[edge.ID] = true
		if v.graph.Node(edge.Source) == nil {
			v.edgeIssue(edge.ID, "unknown source %q", edge.Source)
		}
		if v.graph.Node(edge.Target) == nil {
			v.edgeIssue(edge.ID, "unknown target %q", edge.Target)
		}
		if edge.Source == edge.Target {
			v.edgeIssue(edge.ID, "self loop on %q", edge.Source)
		}
	}
}

func (v *validator) checkDegrees() {
	for _, node := range v.graph.Nodes {
		in := len(v.graph.IncomingEdges(node.ID))
		out := len(v.graph.OutgoingEdges(node.ID))
		switch node.Type {
		case NodeTypeStart:
			if in > 0 {
				v.nodeIssue(node.ID, "start node cannot have incoming edges")
			}
		default:
			if in == 0 {
				v.nodeIssue(node.ID, "no incoming edge")
			}
		}
		switch node.Type {
		case NodeTypeEnd:
			if out > 0 {
				v.nodeIssue(node.ID, "end node cannot have outgoing edges")
			}
		case NodeTypeCondition:
			if out < 2 {
				v.nodeIssue(node.ID, "condition node needs at least 2 outgoing edges, found %d", out)
			}
		case NodeTypeParallel:
			if node.IsSplit() {
				continue
			}
			if out != 1 {
				v.nodeIssue(node.ID, "join node needs exactly 1 outgoing edge, found %d", out)
			}
		default:
			if out != 1 {
				v.nodeIssue(node.ID, "%v node needs exactly 1 outgoing edge, found %d", node.Type, out)
			}
		}
	}
}

func (v *validator) checkConfigs() {
	for _, node := range v.graph.Nodes {
		switch node.Type {
		case NodeTypeApproval:
			v.checkApproval(node)
		case NodeTypeCondition:
			v.checkCondition(node)
		case NodeTypeParallel:
			v.checkParallel(node)
		}
		if binding := node.FormBinding(); binding != nil {
			if binding.FormID == "" && binding.Target == BindDocument {
				v.nodeIssue(node.ID, "form binding requires formId")
			}
			if binding.Target != BindDocument && binding.Target != BindVariables {
				v.nodeIssue(node.ID, "unsupported form binding target %q", binding.Target)
			}
		}
	}
}

func (v *validator) checkRules(nodeID, field string, rules []ApproverRule) {
	for i, rule := range rules {
		switch rule.Type {
		case ApproverUser, ApproverRole, ApproverDepartment:
		default:
			v.nodeIssue(nodeID, "%v[%d]: unsupported approver type %q", field, i, rule.Type)
		}
		if rule.ReferenceID == "" {
			v.nodeIssue(nodeID, "%v[%d]: empty referenceId", field, i)
		}
	}
}

func (v *validator) checkApproval(node *Node) {
	cfg := node.Approval()
	if cfg == nil {
		v.nodeIssue(node.ID, "approval config is required")
		return
	}
	if cfg.ApprovalType != ApprovalAll && cfg.ApprovalType != ApprovalAny {
		v.nodeIssue(node.ID, "unsupported approvalType %q", cfg.ApprovalType)
	}
	if len(cfg.Approvers) == 0 {
		v.nodeIssue(node.ID, "at least one approver rule is required")
	}
	v.checkRules(node.ID, "approvers", cfg.Approvers)
	v.checkRules(node.ID, "escalateTo", cfg.EscalateTo)
	if cfg.TimeoutHours < 0 {
		v.nodeIssue(node.ID, "timeoutHours cannot be negative")
	}
	switch cfg.TimeoutAction {
	case "", TimeoutActionNone, TimeoutActionApprove, TimeoutActionReject, TimeoutActionEscalate:
	default:
		v.nodeIssue(node.ID, "unsupported timeoutAction %q", cfg.TimeoutAction)
	}
	if cfg.ReturnTo != "" {
		if target := v.graph.Node(cfg.ReturnTo); target == nil || target.Type != NodeTypeApproval {
			v.nodeIssue(node.ID, "returnTo %q is not an approval node", cfg.ReturnTo)
		}
	}
}

func (v *validator) checkCondition(node *Node) {
	defaults := 0
	var defaultEdge *Edge
	for _, edge := range v.graph.OutgoingEdges(node.ID) {
		if edge.IsDefault() {
			defaults++
			defaultEdge = edge
		}
	}
	if defaults > 1 {
		v.nodeIssue(node.ID, "at most one default edge is allowed, found %d", defaults)
	}
	cfg := node.Condition()
	if cfg == nil || cfg.DefaultEdgeID == "" {
		return
	}
	edge := v.graph.Edge(cfg.DefaultEdgeID)
	if edge == nil || edge.Source != node.ID {
		v.nodeIssue(node.ID, "defaultEdgeId %q is not an outgoing edge", cfg.DefaultEdgeID)
		return
	}
	if defaultEdge != nil && defaultEdge.ID != edge.ID {
		v.nodeIssue(node.ID, "defaultEdgeId %q conflicts with unconditional edge %q", cfg.DefaultEdgeID, defaultEdge.ID)
	}
}

func (v *validator) checkParallel(node *Node) {
	cfg := node.Parallel()
	if !node.IsSplit() {
		return
	}
	targets := map[string]bool{}
	for _, edge := range v.graph.OutgoingEdges(node.ID) {
		targets[edge.Target] = true
	}
	declared := map[string]bool{}
	for _, branch := range cfg.Branches {
		if declared[branch] {
			v.nodeIssue(node.ID, "duplicate branch %q", branch)
			continue
		}
		declared[branch] = true
		if !targets[branch] {
			v.nodeIssue(node.ID, "branch %q is not a target of an outgoing edge", branch)
		}
	}
	for target := range targets {
		if !declared[target] {
			v.nodeIssue(node.ID, "outgoing edge target %q is not a declared branch", target)
		}
	}
	switch join := v.graph.Node(cfg.JoinNodeID); {
	case cfg.JoinNodeID == "":
		v.nodeIssue(node.ID, "joinNodeId is required")
	case join == nil:
		v.nodeIssue(node.ID, "unknown joinNodeId %q", cfg.JoinNodeID)
	case declared[cfg.JoinNodeID] || cfg.JoinNodeID == node.ID:
		v.nodeIssue(node.ID, "joinNodeId %q cannot be a branch or the split itself", cfg.JoinNodeID)
	}
}

// checkAcyclic rejects any cycle; returning to earlier nodes is a runtime action, not an edge.
func (v *validator) checkAcyclic() bool {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, edge := range v.graph.OutgoingEdges(id) {
			switch color[edge.Target] {
			case grey:
				v.edgeIssue(edge.ID, "cycle detected through %q", edge.Target)
				return false
			case white:
				if !visit(edge.Target) {
					return false
				}
			}
		}
		color[id] = black
		return true
	}
	for _, node := range v.graph.Nodes {
		if color[node.ID] == white && !visit(node.ID) {
			return false
		}
	}
	return true
}

func (v *validator) checkReachability() {
	start := v.graph.Start()
	if start == nil {
		return
	}
	seen := map[string]bool{}
	stack := []string{start.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		if v.graph.Node(id).Type == NodeTypeEnd {
			return
		}
		for _, edge := range v.graph.OutgoingEdges(id) {
			stack = append(stack, edge.Target)
		}
	}
	v.nodeIssue(start.ID, "no end node is reachable from start")
}

// checkBranches ensures every path leaving a branch meets the join before any end node.
func (v *validator) checkBranches() {
	for _, node := range v.graph.Nodes {
		if !node.IsSplit() {
			continue
		}
		join := node.Parallel().JoinNodeID
		if v.graph.Node(join) == nil {
			continue
		}
		for _, branch := range node.Parallel().Branches {
			seen := map[string]bool{}
			stack := []string{branch}
			for len(stack) > 0 {
				id := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if id == join || seen[id] {
					continue
				}
				seen[id] = true
				current := v.graph.Node(id)
				if current == nil {
					continue
				}
				if current.Type == NodeTypeEnd {
					v.nodeIssue(node.ID, "branch %q reaches end node %q before join %q", branch, id, join)
					break
				}
				for _, edge := range v.graph.OutgoingEdges(id) {
					stack = append(stack, edge.Target)
				}
			}
		}
	}
}

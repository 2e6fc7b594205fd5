package condition

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/model/state"
)

// ErrNoMatchingEdge is returned when no condition holds and no default edge exists.
var ErrNoMatchingEdge = errors.New("no matching edge")

// Select returns the first outgoing edge of a condition node whose condition
// holds, in declaration order, falling back to the default edge. An edge whose
// expression fails to compile is treated as false.
func Select(g *graph.Graph, nodeID string, variables state.Variables) (*graph.Edge, error) {
	var defaultEdgeID string
	if cfg := g.Node(nodeID).Condition(); cfg != nil {
		defaultEdgeID = cfg.DefaultEdgeID
	}
	var fallback *graph.Edge
	var failures *multierror.Error
	for _, edge := range g.OutgoingEdges(nodeID) {
		if edge.ID == defaultEdgeID || (defaultEdgeID == "" && edge.IsDefault()) {
			fallback = edge
			continue
		}
		if edge.IsDefault() {
			continue
		}
		ok, err := Evaluate(edge.Condition, variables)
		if err != nil {
			failures = multierror.Append(failures, fmt.Errorf("edge %v: %w", edge.ID, err))
			continue
		}
		if ok {
			return edge, nil
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	if err := failures.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("node %v: %w: %v", nodeID, ErrNoMatchingEdge, err)
	}
	return nil, fmt.Errorf("node %v: %w", nodeID, ErrNoMatchingEdge)
}

// Check parses every edge condition of g and reports syntax problems.
func Check(g *graph.Graph) graph.ValidationErrors {
	var issues graph.ValidationErrors
	if g == nil {
		return issues
	}
	for _, edge := range g.Edges {
		if edge == nil || edge.IsDefault() {
			continue
		}
		if _, err := Compile(edge.Condition); err != nil {
			issues = append(issues, graph.ValidationError{EdgeID: edge.ID, Message: err.Error()})
		}
	}
	return issues
}

package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/model/types"
)

func newDefinition() *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:       "purchase",
		Name:     "Purchase order",
		Category: "finance",
		Version:  Version{Major: 1},
		IsActive: true,
		Graph: &graph.Graph{
			Nodes: []*graph.Node{
				{ID: "start", Type: graph.NodeTypeStart, Config: &graph.FormBinding{FormID: "po", Target: graph.BindDocument}},
				{ID: "route", Type: graph.NodeTypeCondition},
				{ID: "manager", Type: graph.NodeTypeApproval, Config: &graph.ApprovalConfig{
					ApprovalType: graph.ApprovalAny,
					Approvers:    []graph.ApproverRule{{Type: graph.ApproverRole, ReferenceID: "managers"}},
					Form:         &graph.FormBinding{FormID: "review", Target: graph.BindDocument},
				}},
				{ID: "end", Type: graph.NodeTypeEnd},
			},
			Edges: []*graph.Edge{
				{ID: "e1", Source: "start", Target: "route"},
				{ID: "big", Source: "route", Target: "manager", Condition: "amount > 100"},
				{ID: "small", Source: "route", Target: "end"},
				{ID: "e4", Source: "manager", Target: "end"},
			},
		},
	}
}

func TestWorkflowDefinition_Validate(t *testing.T) {
	type testCase struct {
		description string
		mutate      func(d *WorkflowDefinition)
		expect      []string
	}

	testCases := []testCase{
		{description: "valid"},
		{
			description: "missing id",
			mutate:      func(d *WorkflowDefinition) { d.ID = "" },
			expect:      []string{"id is required"},
		},
		{
			description: "malformed condition",
			mutate:      func(d *WorkflowDefinition) { d.Graph.Edges[1].Condition = "amount >> 100" },
			expect:      []string{"edge big:"},
		},
		{
			description: "structural and syntax problems reported together",
			mutate: func(d *WorkflowDefinition) {
				d.Graph.Edges[1].Condition = "amount(1)"
				d.Graph.Nodes[2].Config = &graph.ApprovalConfig{ApprovalType: "Some"}
			},
			expect: []string{`unsupported approvalType "Some"`, "edge big:"},
		},
		{
			description: "nil graph",
			mutate:      func(d *WorkflowDefinition) { d.Graph = nil },
			expect:      []string{"graph is nil"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			def := newDefinition()
			if tc.mutate != nil {
				tc.mutate(def)
			}
			err := def.Validate()
			if len(tc.expect) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrDefinitionInvalid))
			for _, fragment := range tc.expect {
				assert.Contains(t, err.Error(), fragment)
			}
		})
	}
}

func TestWorkflowDefinition_Clone(t *testing.T) {
	def := newDefinition()
	clone, err := def.Clone()
	require.NoError(t, err)
	assert.EqualValues(t, def.Graph.Nodes, clone.Graph.Nodes)

	def.Graph.Edges[1].Condition = "amount > 1"
	def.Graph.Node("manager").Approval().ApprovalType = graph.ApprovalAll
	assert.Equal(t, "amount > 100", clone.Graph.Edge("big").Condition)
	assert.Equal(t, graph.ApprovalAny, clone.Graph.Node("manager").Approval().ApprovalType)
	assert.Equal(t, []string{"po", "review"}, clone.FormIDs())
}

func TestVersion_Compare(t *testing.T) {
	assert.True(t, Version{Major: 1, Minor: 2}.Compare(Version{Major: 1, Minor: 1}) > 0)
	assert.True(t, Version{Major: 1, Minor: 9}.Compare(Version{Major: 2}) < 0)
	assert.Equal(t, 0, Version{Major: 3}.Compare(Version{Major: 3}))
	assert.Equal(t, "1.2", Version{Major: 1, Minor: 2}.String())
}

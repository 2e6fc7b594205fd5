package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/approval/model"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/runtime/instance"
)

func newInstance() *instance.WorkflowInstance {
	return &instance.WorkflowInstance{
		ID: "i1",
		WorkflowDefinitionSnapshot: &model.WorkflowDefinition{
			ID: "d1",
			Graph: &graph.Graph{Nodes: []*graph.Node{
				{ID: "split", Type: graph.NodeTypeParallel, Config: &graph.ParallelConfig{Branches: []string{"legal", "finance", "hr"}, JoinNodeID: "join"}},
				{ID: "join", Type: graph.NodeTypeParallel},
			}},
		},
	}
}

func TestRecordBranchComplete(t *testing.T) {
	type testCase struct {
		description string
		arrivals    []string
		expectReady []bool
		expectSet   []string
	}

	testCases := []testCase{
		{
			description: "all branches in order",
			arrivals:    []string{"legal", "finance", "hr"},
			expectReady: []bool{false, false, true},
			expectSet:   []string{"finance", "hr", "legal"},
		},
		{
			description: "duplicate arrival is idempotent",
			arrivals:    []string{"hr", "hr", "legal", "hr"},
			expectReady: []bool{false, false, false, false},
			expectSet:   []string{"hr", "legal"},
		},
		{
			description: "ready stays ready",
			arrivals:    []string{"finance", "legal", "hr", "legal"},
			expectReady: []bool{false, false, true, true},
			expectSet:   []string{"finance", "hr", "legal"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			inst := newInstance()
			var previous int
			for i, branch := range tc.arrivals {
				ready := RecordBranchComplete(inst, "split", branch)
				assert.Equal(t, tc.expectReady[i], ready, "arrival %d", i)
				size := len(inst.ParallelBranches["split"])
				assert.GreaterOrEqual(t, size, previous)
				previous = size
			}
			assert.Equal(t, tc.expectSet, inst.ParallelBranches["split"])
		})
	}
}

func TestRemainingAndReset(t *testing.T) {
	inst := newInstance()
	assert.Equal(t, []string{"legal", "finance", "hr"}, Remaining(inst, "split"))
	RecordBranchComplete(inst, "split", "finance")
	assert.Equal(t, []string{"legal", "hr"}, Remaining(inst, "split"))
	assert.False(t, Ready(inst, "split"))

	Reset(inst, "split")
	assert.Empty(t, inst.ParallelBranches["split"])
	assert.False(t, Ready(inst, "join"))
}

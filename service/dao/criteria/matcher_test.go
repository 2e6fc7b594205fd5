package criteria

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
)

func TestMatchInstance(t *testing.T) {
	due := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	inst := &instance.WorkflowInstance{
		ID:                   "i1",
		WorkflowDefinitionID: "expense",
		DocumentID:           "doc-1",
		TenantID:             "acme",
		Status:               instance.StatusRunning,
		CurrentApproverIDs:   []string{"alice", "bob"},
		TimeoutAt:            &due,
	}
	type testCase struct {
		description string
		parameters  []*dao.Parameter
		expect      bool
	}
	testCases := []testCase{
		{description: "no parameters", expect: true},
		{description: "status", parameters: []*dao.Parameter{dao.NewParameter(Status, "Running")}, expect: true},
		{description: "status list", parameters: []*dao.Parameter{dao.NewParameter(Status, "Completed", "Rejected")}},
		{description: "typed status", parameters: []*dao.Parameter{{Name: Status, Value: instance.StatusRunning}}, expect: true},
		{description: "approver", parameters: []*dao.Parameter{dao.NewParameter(ApproverID, "bob")}, expect: true},
		{description: "other approver", parameters: []*dao.Parameter{dao.NewParameter(ApproverID, "carol")}},
		{description: "due", parameters: []*dao.Parameter{{Name: DueBefore, Value: due}}, expect: true},
		{description: "not yet due", parameters: []*dao.Parameter{{Name: DueBefore, Value: due.Add(-time.Minute)}}},
		{description: "due as text", parameters: []*dao.Parameter{dao.NewParameter(DueBefore, "2024-03-01T13:00:00Z")}, expect: true},
		{description: "definition", parameters: []*dao.Parameter{dao.NewParameter(DefinitionID, "leave")}},
		{description: "document and tenant", parameters: []*dao.Parameter{dao.NewParameter(DocumentID, "doc-1"), dao.NewParameter(TenantID, "acme")}, expect: true},
		{description: "tenant", parameters: []*dao.Parameter{dao.NewParameter(TenantID, "globex")}},
		{description: "unknown name ignored", parameters: []*dao.Parameter{dao.NewParameter("color", "red"), nil}, expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, MatchInstance(inst, tc.parameters))
		})
	}

	noDeadline := &instance.WorkflowInstance{Status: instance.StatusRunning}
	assert.False(t, MatchInstance(noDeadline, []*dao.Parameter{{Name: DueBefore, Value: due}}))
}

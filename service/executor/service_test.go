package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approval/internal/clock"
	"github.com/viant/approval/internal/idgen"
	"github.com/viant/approval/model"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/approval"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/definition"
	"github.com/viant/approval/service/dao/instance/memory"
	"github.com/viant/approval/service/directory"
	"github.com/viant/approval/service/document"
	"github.com/viant/approval/service/event"
	messaging "github.com/viant/approval/service/messaging/memory"
	"github.com/viant/approval/service/resolver"
)

const singleApprovalYAML = `
id: expense
name: Expense claim
graph:
  nodes:
    - {id: start, type: start}
    - id: review
      type: approval
      label: Review
      config:
        approvalType: %s
        approvers:
          - {type: User, referenceId: alice}
          - {type: User, referenceId: bob}
        allowReject: true
        allowDelegate: true
    - {id: end, type: end}
  edges:
    - {id: e1, source: start, target: review}
    - {id: e2, source: review, target: end}
`

const parallelYAML = `
id: contract
name: Contract
graph:
  nodes:
    - {id: start, type: start}
    - id: split
      type: parallel
      config:
        branches: [legal, finance]
        joinNodeId: join
    - id: legal
      type: approval
      config:
        approvalType: All
        approvers: [{type: User, referenceId: alice}]
    - id: finance
      type: approval
      config:
        approvalType: All
        approvers: [{type: Role, referenceId: controller}]
    - {id: join, type: parallel}
    - {id: end, type: end}
  edges:
    - {id: e1, source: start, target: split}
    - {id: e2, source: split, target: legal}
    - {id: e3, source: split, target: finance}
    - {id: e4, source: legal, target: join}
    - {id: e5, source: finance, target: join}
    - {id: e6, source: join, target: end}
`

const chainYAML = `
id: purchase
name: Purchase
graph:
  nodes:
    - id: start
      type: start
      config:
        formId: purchase-form
        target: document
    - id: route
      type: condition
    - id: manager
      type: approval
      config:
        approvalType: Any
        approvers: [{type: Role, referenceId: managers}]
    - id: director
      type: approval
      config:
        approvalType: Any
        approvers: [{type: User, referenceId: dave}]
    - id: finance
      type: approval
      config:
        approvalType: Any
        approvers: [{type: User, referenceId: carol}]
        allowReturn: true
        allowReject: true
    - {id: end, type: end}
  edges:
    - {id: e1, source: start, target: route}
    - {id: e2, source: route, target: manager, condition: "amount <= 1000"}
    - {id: e3, source: route, target: director, condition: "amount > 1000"}
    - {id: e4, source: manager, target: finance}
    - {id: e5, source: director, target: finance}
    - {id: e6, source: finance, target: end}
`

type fixture struct {
	executor    *Service
	store       dao.Service[string, instance.WorkflowInstance]
	definitions *definition.Service
	documents   *document.Service
	directory   *directory.Memory
	clock       *clock.Manual
	events      *event.Service
}

func newFixture(t *testing.T, store dao.Service[string, instance.WorkflowInstance], opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	if store == nil {
		store = memory.New()
	}
	ret := &fixture{
		store:       store,
		definitions: definition.New(),
		documents:   document.NewMemory(),
		directory: directory.NewMemory(
			&directory.User{ID: "alice", Roles: []string{"managers"}},
			&directory.User{ID: "bob", Roles: []string{"controller", "managers"}},
			&directory.User{ID: "erin", Roles: []string{"executives"}},
		),
		clock:  clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		events: event.New(messaging.DefaultConfig(), nil),
	}
	t.Cleanup(ret.events.Close)
	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		require.NoError(t, ret.documents.PutDocument(ctx, &model.Document{ID: id, Status: "Submitted", Fields: map[string]interface{}{"amount": 5000, "currency": "USD"}}))
	}
	require.NoError(t, ret.documents.PutForm(ctx, &model.FormDefinition{ID: "purchase-form", Fields: []*model.FormField{{Name: "amount"}, {Name: "currency"}}}))
	options := append([]Option{
		WithForms(ret.documents),
		WithEvents(ret.events),
		WithClock(ret.clock.Now),
		WithIDGen(idgen.Sequence("wf")),
		WithConfig(Config{MaxRetries: 3, RetryInterval: time.Millisecond}),
	}, opts...)
	ret.executor = New(store, ret.definitions, ret.documents, resolver.New(ret.directory), options...)
	return ret
}

func (f *fixture) publish(t *testing.T, source string) *model.WorkflowDefinition {
	t.Helper()
	def, err := definition.DecodeYAML([]byte(source))
	require.NoError(t, err)
	published, err := f.definitions.Publish(context.Background(), def)
	require.NoError(t, err)
	return published
}

func (f *fixture) act(instanceID, nodeID, approverID, action string) (approval.Outcome, error) {
	return f.executor.SubmitApprovalAction(context.Background(), &ActionRequest{
		InstanceID: instanceID,
		NodeID:     nodeID,
		ApproverID: approverID,
		Action:     action,
	})
}

func (f *fixture) instance(t *testing.T, id string) *instance.WorkflowInstance {
	t.Helper()
	ret, err := f.executor.Instance(context.Background(), id)
	require.NoError(t, err)
	return ret
}

func (f *fixture) documentStatus(t *testing.T, id string) string {
	t.Helper()
	doc, err := f.documents.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc.Status
}

// drain returns the types of every event published so far.
func (f *fixture) drain() []string {
	var result []string
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		message, err := f.events.Publisher().Consume(ctx)
		cancel()
		if err != nil {
			return result
		}
		result = append(result, message.T().Context.Type)
		_ = message.Ack()
	}
}

func count(values []string, value string) int {
	ret := 0
	for _, candidate := range values {
		if candidate == value {
			ret++
		}
	}
	return ret
}

func TestService_RejectScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.publish(t, fmt.Sprintf(singleApprovalYAML, "Any"))

	inst, err := f.executor.Start(ctx, "expense", "doc-1", "requester", nil)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", inst.ID)
	assert.Equal(t, instance.StatusRunning, inst.Status)
	assert.Equal(t, "review", inst.CurrentNodeID)
	assert.Equal(t, []string{"alice", "bob"}, inst.CurrentApproverIDs)

	outcome, err := f.act(inst.ID, "review", "alice", instance.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, approval.OutcomeRejected, outcome)

	stored := f.instance(t, inst.ID)
	assert.Equal(t, instance.StatusRejected, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Empty(t, stored.CurrentApproverIDs)
	assert.Equal(t, model.DocumentStatusRejected, f.documentStatus(t, "doc-1"))

	_, err = f.act(inst.ID, "review", "bob", instance.ActionApprove)
	assert.True(t, errors.Is(err, types.ErrInstanceNotActive))
	assert.Len(t, f.instance(t, inst.ID).ApprovalRecords, 1)

	assert.Equal(t, []string{
		event.TypeInstanceStarted,
		event.TypeNodeEntered,
		event.TypeNodeEntered,
		event.TypeApproversAssigned,
		event.TypeActionRecorded,
		event.TypeInstanceRejected,
	}, f.drain())
}

func TestService_ParallelScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.publish(t, parallelYAML)

	inst, err := f.executor.Start(ctx, "contract", "doc-1", "requester", nil)
	require.NoError(t, err)
	assert.Equal(t, "split", inst.CurrentNodeID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, inst.CurrentApproverIDs)
	require.Len(t, inst.Positions, 3)
	assert.True(t, inst.Root().Waiting)

	tasks, err := f.executor.GetPendingTasks(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "finance", tasks[0].NodeID)
	assert.Equal(t, "Contract", tasks[0].DefinitionName)

	outcome, err := f.act(inst.ID, "legal", "alice", instance.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, approval.OutcomeSatisfied, outcome)
	stored := f.instance(t, inst.ID)
	assert.Equal(t, instance.StatusRunning, stored.Status)
	assert.Equal(t, []string{"legal"}, stored.ParallelBranches["split"])
	assert.Equal(t, []string{"bob"}, stored.CurrentApproverIDs)
	assert.Nil(t, stored.Position("main/legal"))

	_, err = f.act(inst.ID, "legal", "alice", instance.ActionApprove)
	require.NoError(t, err, "late identical action on a resolved branch")
	assert.Equal(t, []string{"legal"}, f.instance(t, inst.ID).ParallelBranches["split"])

	outcome, err = f.act(inst.ID, "", "bob", instance.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, approval.OutcomeSatisfied, outcome)
	stored = f.instance(t, inst.ID)
	assert.Equal(t, instance.StatusCompleted, stored.Status)
	assert.Equal(t, "end", stored.CurrentNodeID)
	assert.Equal(t, []string{"finance", "legal"}, stored.ParallelBranches["split"])
	require.Len(t, stored.Positions, 1)
	assert.Equal(t, []string{"start", "split", "join", "end"}, stored.Root().History)
	assert.Equal(t, model.DocumentStatusApproved, f.documentStatus(t, "doc-1"))
}

func TestService_Aggregation(t *testing.T) {
	type step struct {
		approver string
		action   string
		delegate string
	}
	type testCase struct {
		description   string
		approvalType  string
		steps         []step
		expectOutcome approval.Outcome
		expectStatus  instance.Status
		expectPending []string
	}
	testCases := []testCase{
		{
			description:   "all waits for every approver",
			approvalType:  "All",
			steps:         []step{{approver: "alice", action: instance.ActionApprove}},
			expectOutcome: approval.OutcomePending,
			expectStatus:  instance.StatusRunning,
			expectPending: []string{"bob"},
		},
		{
			description:   "all completes with every approval",
			approvalType:  "All",
			steps:         []step{{approver: "alice", action: instance.ActionApprove}, {approver: "bob", action: instance.ActionApprove}},
			expectOutcome: approval.OutcomeSatisfied,
			expectStatus:  instance.StatusCompleted,
		},
		{
			description:   "any completes with one approval",
			approvalType:  "Any",
			steps:         []step{{approver: "bob", action: instance.ActionApprove}},
			expectOutcome: approval.OutcomeSatisfied,
			expectStatus:  instance.StatusCompleted,
		},
		{
			description:   "reject wins under all",
			approvalType:  "All",
			steps:         []step{{approver: "alice", action: instance.ActionApprove}, {approver: "bob", action: instance.ActionReject}},
			expectOutcome: approval.OutcomeRejected,
			expectStatus:  instance.StatusRejected,
		},
		{
			description:   "delegation moves the slot",
			approvalType:  "All",
			steps:         []step{{approver: "alice", action: instance.ActionDelegate, delegate: "carol"}, {approver: "bob", action: instance.ActionApprove}},
			expectOutcome: approval.OutcomePending,
			expectStatus:  instance.StatusRunning,
			expectPending: []string{"carol"},
		},
		{
			description:  "delegate decides for the original slot",
			approvalType: "All",
			steps: []step{
				{approver: "alice", action: instance.ActionDelegate, delegate: "carol"},
				{approver: "bob", action: instance.ActionApprove},
				{approver: "carol", action: instance.ActionApprove},
			},
			expectOutcome: approval.OutcomeSatisfied,
			expectStatus:  instance.StatusCompleted,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			f := newFixture(t, nil)
			f.publish(t, fmt.Sprintf(singleApprovalYAML, tc.approvalType))
			inst, err := f.executor.Start(context.Background(), "expense", "doc-1", "requester", nil)
			require.NoError(t, err)
			var outcome approval.Outcome
			for _, s := range tc.steps {
				outcome, err = f.executor.SubmitApprovalAction(context.Background(), &ActionRequest{
					InstanceID: inst.ID, NodeID: "review", ApproverID: s.approver, Action: s.action, DelegateTo: s.delegate,
				})
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expectOutcome, outcome)
			stored := f.instance(t, inst.ID)
			assert.Equal(t, tc.expectStatus, stored.Status)
			assert.Equal(t, tc.expectPending, stored.CurrentApproverIDs)
		})
	}
}

func TestService_SubmitErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.publish(t, fmt.Sprintf(singleApprovalYAML, "All"))
	inst, err := f.executor.Start(context.Background(), "expense", "doc-1", "requester", nil)
	require.NoError(t, err)

	type testCase struct {
		description string
		request     *ActionRequest
		expect      error
	}
	testCases := []testCase{
		{description: "unknown action", request: &ActionRequest{InstanceID: inst.ID, ApproverID: "alice", Action: "Veto"}, expect: types.ErrInvalidRequest},
		{description: "self delegation", request: &ActionRequest{InstanceID: inst.ID, ApproverID: "alice", Action: instance.ActionDelegate, DelegateTo: "alice"}, expect: types.ErrInvalidRequest},
		{description: "unknown instance", request: &ActionRequest{InstanceID: "missing", ApproverID: "alice", Action: instance.ActionApprove}, expect: types.ErrNotFound},
		{description: "stranger", request: &ActionRequest{InstanceID: inst.ID, NodeID: "review", ApproverID: "mallory", Action: instance.ActionApprove}, expect: types.ErrNotAuthorized},
		{description: "stranger without node", request: &ActionRequest{InstanceID: inst.ID, ApproverID: "mallory", Action: instance.ActionApprove}, expect: types.ErrNotAuthorized},
		{description: "return not enabled", request: &ActionRequest{InstanceID: inst.ID, NodeID: "review", ApproverID: "alice", Action: instance.ActionReturn}, expect: types.ErrActionNotAllowed},
		{description: "not an approval node", request: &ActionRequest{InstanceID: inst.ID, NodeID: "start", ApproverID: "alice", Action: instance.ActionApprove}, expect: types.ErrInvalidRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, err := f.executor.SubmitApprovalAction(context.Background(), tc.request)
			assert.True(t, errors.Is(err, tc.expect), "got %v", err)
		})
	}
	assert.Empty(t, f.instance(t, inst.ID).ApprovalRecords)
}

func TestService_Replay(t *testing.T) {
	f := newFixture(t, nil)
	f.publish(t, fmt.Sprintf(singleApprovalYAML, "All"))
	inst, err := f.executor.Start(context.Background(), "expense", "doc-1", "requester", nil)
	require.NoError(t, err)

	outcome, err := f.act(inst.ID, "review", "alice", instance.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, approval.OutcomePending, outcome)
	version := f.instance(t, inst.ID).Version

	outcome, err = f.act(inst.ID, "review", "alice", instance.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, approval.OutcomePending, outcome)
	stored := f.instance(t, inst.ID)
	assert.Equal(t, version, stored.Version)
	assert.Len(t, stored.ApprovalRecords, 1)
}

func TestService_ReplayAfterResolution(t *testing.T) {
	f := newFixture(t, nil)
	f.publish(t, parallelYAML)
	inst, err := f.executor.Start(context.Background(), "contract", "doc-1", "requester", nil)
	require.NoError(t, err)

	outcome, err := f.act(inst.ID, "legal", "alice", instance.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, approval.OutcomeSatisfied, outcome)
	stored := f.instance(t, inst.ID)
	version := stored.Version
	require.Len(t, stored.ApprovalRecords, 1)
	f.drain()

	for i := 0; i < 2; i++ {
		outcome, err = f.act(inst.ID, "legal", "alice", instance.ActionApprove)
		require.NoError(t, err)
		assert.Equal(t, approval.OutcomeSatisfied, outcome)
	}
	stored = f.instance(t, inst.ID)
	assert.Equal(t, version, stored.Version)
	assert.Len(t, stored.ApprovalRecords, 1)
	assert.Empty(t, f.drain())
}

func TestService_ConditionAndForms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, chainYAML)

	inst, err := f.executor.Start(ctx, "purchase", "doc-1", "requester", map[string]interface{}{"priority": "high"})
	require.NoError(t, err)
	assert.Equal(t, "director", inst.CurrentNodeID)
	amount, ok := inst.Variables.Get("amount")
	require.True(t, ok)
	value, _ := amount.Float()
	assert.Equal(t, 5000.0, value)
	currency, ok := inst.Variables.Get("currency")
	require.True(t, ok)
	assert.Equal(t, "USD", currency.Interface())
	assert.NotNil(t, inst.FormDefinitionSnapshots["purchase-form"])

	require.NoError(t, f.documents.PutDocument(ctx, &model.Document{ID: "doc-2", Fields: map[string]interface{}{"currency": "EUR"}}))
	faulted, err := f.executor.Start(ctx, "purchase", "doc-2", "requester", nil)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusRunning, faulted.Status)
	assert.Equal(t, "route", faulted.CurrentNodeID)
	require.Len(t, faulted.Faults, 1)
	assert.Equal(t, string(types.CodeEvaluationFailed), faulted.Faults[0].Code)
	assert.Equal(t, instance.RootPositionID, faulted.Faults[0].PositionID)
	require.NotNil(t, faulted.Root().Fault)
	assert.Empty(t, faulted.CurrentApproverIDs)

	_, err = f.executor.RetryFault(ctx, inst.ID)
	assert.True(t, errors.Is(err, types.ErrInvalidRequest))

	_, err = f.executor.UpdateVariables(ctx, faulted.ID, map[string]interface{}{"amount": 250})
	require.NoError(t, err)
	retried, err := f.executor.RetryFault(ctx, faulted.ID)
	require.NoError(t, err)
	assert.Empty(t, retried.Faults)
	assert.Nil(t, retried.Root().Fault)
	assert.Equal(t, "manager", retried.CurrentNodeID)
	assert.Equal(t, []string{"alice", "bob"}, retried.CurrentApproverIDs)
}

const faultingBranchesYAML = `
id: audit
name: Audit
graph:
  nodes:
    - {id: start, type: start}
    - id: split
      type: parallel
      config:
        branches: [c1, c2]
        joinNodeId: join
    - {id: c1, type: condition}
    - {id: c2, type: condition}
    - {id: join, type: parallel}
    - {id: end, type: end}
  edges:
    - {id: e1, source: start, target: split}
    - {id: e2, source: split, target: c1}
    - {id: e3, source: split, target: c2}
    - {id: e4, source: c1, target: join, condition: "a > 1"}
    - {id: e5, source: c1, target: join, condition: "a <= 1"}
    - {id: e6, source: c2, target: join, condition: "b > 1"}
    - {id: e7, source: c2, target: join, condition: "b <= 1"}
    - {id: e8, source: join, target: end}
`

func TestService_ParallelFaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, faultingBranchesYAML)

	inst, err := f.executor.Start(ctx, "audit", "doc-1", "requester", nil)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusRunning, inst.Status)
	require.Len(t, inst.Faults, 2)
	assert.Equal(t, "main/c1", inst.Faults[0].PositionID)
	assert.Equal(t, "c1", inst.Faults[0].NodeID)
	assert.Equal(t, "main/c2", inst.Faults[1].PositionID)
	assert.Equal(t, "c2", inst.Faults[1].NodeID)

	type testCase struct {
		description   string
		variables     map[string]interface{}
		positions     []string
		expectErr     error
		expectFaults  []string
		expectStatus  instance.Status
		expectArrived []string
	}
	testCases := []testCase{
		{
			description:  "position without fault",
			positions:    []string{instance.RootPositionID},
			expectErr:    types.ErrInvalidRequest,
			expectFaults: []string{"main/c1", "main/c2"},
			expectStatus: instance.StatusRunning,
		},
		{
			description:   "one branch fixed",
			variables:     map[string]interface{}{"a": 5},
			positions:     []string{"main/c1"},
			expectFaults:  []string{"main/c2"},
			expectStatus:  instance.StatusRunning,
			expectArrived: []string{"c1"},
		},
		{
			description:   "retry without a fix faults again",
			expectFaults:  []string{"main/c2"},
			expectStatus:  instance.StatusRunning,
			expectArrived: []string{"c1"},
		},
		{
			description:   "last branch releases the join",
			variables:     map[string]interface{}{"b": 0},
			expectStatus:  instance.StatusCompleted,
			expectArrived: []string{"c1", "c2"},
		},
		{
			description:  "nothing left to retry",
			expectErr:    types.ErrInstanceNotActive,
			expectStatus: instance.StatusCompleted,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			if tc.variables != nil {
				_, err := f.executor.UpdateVariables(ctx, inst.ID, tc.variables)
				require.NoError(t, err)
			}
			_, err := f.executor.RetryFault(ctx, inst.ID, tc.positions...)
			if tc.expectErr != nil {
				assert.True(t, errors.Is(err, tc.expectErr), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			stored := f.instance(t, inst.ID)
			assert.Equal(t, tc.expectStatus, stored.Status)
			var faulted []string
			for _, fault := range stored.Faults {
				faulted = append(faulted, fault.PositionID)
			}
			assert.Equal(t, tc.expectFaults, faulted)
			if tc.expectArrived != nil {
				assert.Equal(t, tc.expectArrived, stored.ParallelBranches["split"])
			}
		})
	}

	events := f.drain()
	assert.Equal(t, 3, count(events, event.TypeConditionFault))
	assert.Equal(t, 2, count(events, event.TypeBranchCompleted))
}

func TestService_NoApproversFault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, parallelYAML)
	f.directory.Put(&directory.User{ID: "bob"})

	inst, err := f.executor.Start(ctx, "contract", "doc-1", "requester", nil)
	require.NoError(t, err)
	require.Len(t, inst.Faults, 1)
	assert.Equal(t, FaultNoApprovers, inst.Faults[0].Code)
	assert.Equal(t, "main/finance", inst.Faults[0].PositionID)
	assert.Equal(t, []string{"alice"}, inst.CurrentApproverIDs)

	f.directory.Put(&directory.User{ID: "frank", Roles: []string{"controller"}})
	retried, err := f.executor.RetryFault(ctx, inst.ID)
	require.NoError(t, err)
	assert.Empty(t, retried.Faults)
	assert.ElementsMatch(t, []string{"alice", "frank"}, retried.CurrentApproverIDs)
}

func TestService_Return(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, chainYAML)
	inst, err := f.executor.Start(ctx, "purchase", "doc-1", "requester", nil)
	require.NoError(t, err)

	_, err = f.act(inst.ID, "director", "dave", instance.ActionApprove)
	require.NoError(t, err)
	outcome, err := f.act(inst.ID, "finance", "carol", instance.ActionReturn)
	require.NoError(t, err)
	assert.Equal(t, approval.OutcomeReturned, outcome)

	stored := f.instance(t, inst.ID)
	assert.Equal(t, "director", stored.CurrentNodeID)
	assert.Equal(t, 2, stored.Root().Visit)
	assert.Equal(t, []string{"dave"}, stored.CurrentApproverIDs)

	outcome, err = f.act(inst.ID, "director", "dave", instance.ActionApprove)
	require.NoError(t, err, "a fresh visit does not treat the earlier approval as a replay")
	assert.Equal(t, approval.OutcomeSatisfied, outcome)
	_, err = f.act(inst.ID, "finance", "carol", instance.ActionApprove)
	require.NoError(t, err)

	stored = f.instance(t, inst.ID)
	assert.Equal(t, instance.StatusCompleted, stored.Status)
	assert.Equal(t, []string{"start", "route", "director", "finance", "director", "finance", "end"}, stored.History)
	assert.Len(t, stored.Visits, 4)
}

func TestService_LateAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, chainYAML)
	require.NoError(t, f.documents.PutDocument(ctx, &model.Document{ID: "doc-2", Fields: map[string]interface{}{"amount": 10}}))
	inst, err := f.executor.Start(ctx, "purchase", "doc-2", "requester", nil)
	require.NoError(t, err)
	assert.Equal(t, "manager", inst.CurrentNodeID)

	_, err = f.act(inst.ID, "manager", "alice", instance.ActionApprove)
	require.NoError(t, err)

	outcome, err := f.act(inst.ID, "manager", "bob", instance.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, approval.OutcomeSatisfied, outcome)

	stored := f.instance(t, inst.ID)
	assert.Equal(t, instance.StatusRunning, stored.Status)
	assert.Equal(t, "finance", stored.CurrentNodeID)
	require.Len(t, stored.ApprovalRecords, 2)
	assert.True(t, stored.ApprovalRecords[1].Ignored)
	version := stored.Version

	_, err = f.act(inst.ID, "manager", "bob", instance.ActionReject)
	require.NoError(t, err)
	stored = f.instance(t, inst.ID)
	assert.Equal(t, version, stored.Version, "repeated late action is a no-op")
	assert.Len(t, stored.ApprovalRecords, 2)

	_, err = f.act(inst.ID, "manager", "erin", instance.ActionApprove)
	assert.True(t, errors.Is(err, types.ErrNotAuthorized))
	_, err = f.act(inst.ID, "director", "dave", instance.ActionApprove)
	assert.True(t, errors.Is(err, types.ErrNotAuthorized), "never visited")
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, fmt.Sprintf(singleApprovalYAML, "All"))
	inst, err := f.executor.Start(ctx, "expense", "doc-1", "requester", nil)
	require.NoError(t, err)

	require.NoError(t, f.executor.Cancel(ctx, inst.ID, "withdrawn"))
	stored := f.instance(t, inst.ID)
	assert.Equal(t, instance.StatusCancelled, stored.Status)
	assert.Equal(t, "withdrawn", stored.CancelReason)
	assert.Empty(t, stored.CurrentApproverIDs)
	assert.Nil(t, stored.TimeoutAt)
	assert.Equal(t, model.DocumentStatusCancelled, f.documentStatus(t, "doc-1"))

	assert.True(t, errors.Is(f.executor.Cancel(ctx, inst.ID, "again"), types.ErrInstanceNotActive))
	_, err = f.executor.UpdateVariables(ctx, inst.ID, map[string]interface{}{"x": 1})
	assert.True(t, errors.Is(err, types.ErrInstanceNotActive))
	tasks, err := f.executor.GetPendingTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestService_StartErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, fmt.Sprintf(singleApprovalYAML, "All"))

	_, err := f.executor.Start(ctx, "unknown", "doc-1", "requester", nil)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	_, err = f.executor.Start(ctx, "expense", "missing", "requester", nil)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	_, err = f.executor.Start(ctx, "expense", "", "requester", nil)
	assert.True(t, errors.Is(err, types.ErrInvalidRequest))

	require.NoError(t, f.definitions.Deactivate(ctx, "expense"))
	_, err = f.executor.Start(ctx, "expense", "doc-1", "requester", nil)
	assert.True(t, errors.Is(err, types.ErrDefinitionInactive))
}

func TestService_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, fmt.Sprintf(singleApprovalYAML, "All"))
	inst, err := f.executor.Start(ctx, "expense", "doc-1", "requester", nil)
	require.NoError(t, err)

	revised, err := definition.DecodeYAML([]byte(fmt.Sprintf(singleApprovalYAML, "Any")))
	require.NoError(t, err)
	revised.Graph.Node("review").Approval().Approvers[1].ReferenceID = "erin"
	_, err = f.definitions.Publish(ctx, revised)
	require.NoError(t, err)

	_, err = f.act(inst.ID, "review", "alice", instance.ActionApprove)
	require.NoError(t, err)
	stored := f.instance(t, inst.ID)
	assert.Equal(t, instance.StatusRunning, stored.Status, "the snapshot still requires every approver")
	assert.Equal(t, "1.0", stored.WorkflowDefinitionSnapshot.Version.String())
	assert.Equal(t, []string{"bob"}, stored.CurrentApproverIDs)

	next, err := f.executor.Start(ctx, "expense", "doc-2", "requester", nil)
	require.NoError(t, err)
	assert.Equal(t, "1.1", next.WorkflowDefinitionSnapshot.Version.String())
	assert.Equal(t, []string{"alice", "erin"}, next.CurrentApproverIDs)
}

func TestService_FormSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publish(t, chainYAML)
	inst, err := f.executor.Start(ctx, "purchase", "doc-1", "requester", nil)
	require.NoError(t, err)

	form, err := f.documents.GetForm(ctx, "purchase-form")
	require.NoError(t, err)
	form.Fields[0].Name = "total"
	form.Fields = append(form.Fields, &model.FormField{Name: "region"})
	require.NoError(t, f.documents.PutForm(ctx, &model.FormDefinition{ID: "purchase-form", Fields: []*model.FormField{{Name: "currency"}}}))

	stored := f.instance(t, inst.ID)
	require.NotNil(t, stored.FormDefinitionSnapshots["purchase-form"])
	assert.Equal(t, []string{"amount", "currency"}, stored.FormDefinitionSnapshots["purchase-form"].FieldNames())
	assert.Equal(t, []string{"amount", "currency"}, inst.FormDefinitionSnapshots["purchase-form"].FieldNames())
}

type conflictingStore struct {
	*memory.Service
	failures int
	saves    int
}

func (s *conflictingStore) Save(ctx context.Context, inst *instance.WorkflowInstance) error {
	if inst.Version > 0 && s.failures > 0 {
		s.failures--
		return dao.ErrConflict
	}
	s.saves++
	return s.Service.Save(ctx, inst)
}

func TestService_ConflictRetry(t *testing.T) {
	type testCase struct {
		description string
		failures    int
		expectErr   error
	}
	testCases := []testCase{
		{description: "retried until the write lands", failures: 2},
		{description: "retry budget exhausted", failures: 10, expectErr: types.ErrConflict},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			store := &conflictingStore{Service: memory.New()}
			f := newFixture(t, store)
			f.publish(t, fmt.Sprintf(singleApprovalYAML, "Any"))
			inst, err := f.executor.Start(context.Background(), "expense", "doc-1", "requester", nil)
			require.NoError(t, err)

			store.failures = tc.failures
			_, err = f.act(inst.ID, "review", "alice", instance.ActionApprove)
			stored := f.instance(t, inst.ID)
			if tc.expectErr != nil {
				assert.True(t, errors.Is(err, tc.expectErr), "got %v", err)
				assert.Equal(t, types.CodeConflict, types.CodeOf(err))
				assert.Equal(t, instance.StatusRunning, stored.Status)
				assert.Equal(t, "Submitted", f.documentStatus(t, "doc-1"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, instance.StatusCompleted, stored.Status)
			assert.Len(t, stored.ApprovalRecords, 1)
			assert.Equal(t, model.DocumentStatusApproved, f.documentStatus(t, "doc-1"))
		})
	}
}

package approval_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/approval"
	"github.com/viant/approval/internal/clock"
	"github.com/viant/approval/internal/idgen"
	"github.com/viant/approval/model"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/document"
	"github.com/viant/approval/service/event"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const purchaseYAML = `
id: purchase
name: Purchase order
graph:
  nodes:
    - {id: start, type: start}
    - id: manager
      type: approval
      label: Manager review
      config:
        approvalType: Any
        approvers: [{type: Role, referenceId: managers}]
        allowReject: true
        timeoutHours: 2
        timeoutAction: approve
    - id: finance
      type: approval
      label: Finance review
      config:
        approvalType: All
        approvers: [{type: Department, referenceId: finance}]
        allowReject: true
    - {id: end, type: end}
  edges:
    - {id: e1, source: start, target: manager}
    - {id: e2, source: manager, target: finance}
    - {id: e3, source: finance, target: end}
`

const directoryYAML = `
users:
  - {id: ann, roles: [managers]}
  - {id: ben, roles: [managers]}
  - {id: cat, departments: [finance]}
  - {id: dan, departments: [finance]}
`

type recorder struct {
	mux   sync.Mutex
	types []string
}

func (r *recorder) handle(_ context.Context, evt *event.Event[event.Detail]) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.types = append(r.types, evt.Context.Type)
	return nil
}

func (r *recorder) seen(eventType string) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	for _, candidate := range r.types {
		if candidate == eventType {
			return true
		}
	}
	return false
}

func upload(t *testing.T, fs afs.Service, URL, content string) {
	t.Helper()
	require.NoError(t, fs.Upload(context.Background(), URL, file.DefaultFileOsMode, bytes.NewReader([]byte(content))))
}

func newService(t *testing.T, base string, now *clock.Manual, opts ...approval.Option) *approval.Service {
	t.Helper()
	ctx := context.Background()
	fs := afs.New()
	upload(t, fs, base+"/directory.yaml", directoryYAML)
	upload(t, fs, base+"/definitions/src/purchase.yaml", purchaseYAML)

	config := approval.DefaultConfig()
	config.Store = approval.StoreConfig{Driver: approval.DriverFS, URL: base + "/instances"}
	config.Definitions.URL = base + "/definitions/published"
	config.Documents.URL = base + "/documents"
	config.Directory.URL = base + "/directory.yaml"
	config.Scheduler.Spec = "@every 1s"
	config.Executor.RetryInterval = time.Millisecond
	options := append([]approval.Option{
		approval.WithConfig(config),
		approval.WithFS(fs),
		approval.WithClock(now.Now),
		approval.WithIDGen(idgen.Sequence("po")),
	}, opts...)
	srv, err := approval.New(ctx, options...)
	require.NoError(t, err)

	_, err = srv.PublishDefinitionURL(ctx, base+"/definitions/src/purchase.yaml")
	require.NoError(t, err)
	documents, ok := srv.Documents().(*document.Service)
	require.True(t, ok)
	require.NoError(t, documents.PutDocument(ctx, &model.Document{ID: "po-100", Status: "Submitted", Fields: map[string]interface{}{"amount": 1200}}))
	return srv
}

func TestService(t *testing.T) {
	ctx := context.Background()
	now := clock.NewManual(time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC))
	exporter := tracetest.NewInMemoryExporter()
	srv := newService(t, "mem://localhost/approval/e2e", now, approval.WithTracingExporter(exporter))
	defer func() { assert.NoError(t, srv.Runtime().Shutdown(ctx)) }()

	def, err := srv.LoadDefinition(ctx, "purchase")
	require.NoError(t, err)
	assert.Equal(t, "Purchase order", def.Name)

	id, err := srv.StartInstance(ctx, "purchase", "po-100", "requester", nil)
	require.NoError(t, err)
	assert.Equal(t, "po-1", id)

	for _, approver := range []string{"ann", "ben"} {
		tasks, err := srv.GetPendingTasks(ctx, approver)
		require.NoError(t, err)
		require.Len(t, tasks, 1, approver)
		assert.Equal(t, "Manager review", tasks[0].NodeLabel)
	}

	outcome, err := srv.SubmitApprovalAction(ctx, &approval.ActionRequest{InstanceID: id, ApproverID: "ben", Action: instance.ActionApprove})
	require.NoError(t, err)
	assert.EqualValues(t, "Satisfied", outcome)
	tasks, err := srv.GetPendingTasks(ctx, "ann")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	outcome, err = srv.SubmitApprovalAction(ctx, &approval.ActionRequest{InstanceID: id, ApproverID: "cat", Action: instance.ActionApprove})
	require.NoError(t, err)
	assert.EqualValues(t, "Pending", outcome)
	outcome, err = srv.SubmitApprovalAction(ctx, &approval.ActionRequest{InstanceID: id, ApproverID: "dan", Action: instance.ActionApprove})
	require.NoError(t, err)
	assert.EqualValues(t, "Satisfied", outcome)

	inst, err := srv.Instance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusCompleted, inst.Status)
	assert.Len(t, inst.ApprovalRecords, 3)

	doc, err := srv.Documents().GetDocument(ctx, "po-100")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusApproved, doc.Status)
	assert.NotEmpty(t, exporter.GetSpans())
}

func TestRuntime(t *testing.T) {
	ctx := context.Background()
	now := clock.NewManual(time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC))
	events := &recorder{}
	srv := newService(t, "mem://localhost/approval/runtime", now, approval.WithEventHandler(events.handle))
	runtime := srv.Runtime()
	require.NoError(t, runtime.Start(ctx))
	require.NoError(t, runtime.Start(ctx))

	id, err := srv.StartInstance(ctx, "purchase", "po-100", "requester", nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return events.seen(event.TypeApproversAssigned) }, 2*time.Second, 10*time.Millisecond)

	now.Advance(3 * time.Hour)
	handled, err := srv.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	inst, err := srv.Instance(ctx, id)
	require.NoError(t, err)
	require.Len(t, inst.Positions, 1)
	assert.Equal(t, "finance", inst.Positions[0].NodeID)
	assert.Eventually(t, func() bool { return events.seen(event.TypeTimeoutFired) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.CancelInstance(ctx, id, "withdrawn"))
	inst, err = srv.Instance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusCancelled, inst.Status)
	require.NoError(t, runtime.Shutdown(ctx))
}

func TestConfig_Validate(t *testing.T) {
	type testCase struct {
		description string
		mutate      func(c *approval.Config)
		expectErr   bool
	}
	testCases := []testCase{
		{description: "defaults", mutate: func(c *approval.Config) {}},
		{description: "unknown driver", mutate: func(c *approval.Config) { c.Store.Driver = "redis" }, expectErr: true},
		{description: "fs without url", mutate: func(c *approval.Config) { c.Store.Driver = approval.DriverFS }, expectErr: true},
		{description: "postgres without dsn", mutate: func(c *approval.Config) { c.Store.Driver = approval.DriverPostgres }, expectErr: true},
		{description: "mongo", mutate: func(c *approval.Config) {
			c.Store.Driver = approval.DriverMongo
			c.Store.URL = "mongodb://localhost:27017"
		}},
		{description: "invalid schedule", mutate: func(c *approval.Config) { c.Scheduler.Spec = "every minute" }, expectErr: true},
		{description: "disabled scheduler ignores spec", mutate: func(c *approval.Config) {
			c.Scheduler.Enabled = false
			c.Scheduler.Spec = "every minute"
		}},
		{description: "timeout action", mutate: func(c *approval.Config) { c.Executor.DefaultTimeoutAction = "ignore" }, expectErr: true},
		{description: "escalate", mutate: func(c *approval.Config) { c.Executor.DefaultTimeoutAction = graph.TimeoutActionEscalate }},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			config := approval.DefaultConfig()
			tc.mutate(config)
			err := config.Validate()
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	config := approval.DefaultConfig()
	config.Store.Driver = "redis"
	_, err := approval.New(context.Background(), approval.WithConfig(config))
	assert.Error(t, err)
}

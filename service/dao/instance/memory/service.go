package memory

import (
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/criteria"
	"github.com/viant/approval/service/dao/store"
)

// Service implements an in-memory, thread-safe instance store. Instances are
// copied on every Save and Load so callers never share state with the store.
type Service struct {
	*store.MemoryStore[string, instance.WorkflowInstance]
}

var _ dao.Service[string, instance.WorkflowInstance] = (*Service)(nil)

func New() *Service {
	return &Service{MemoryStore: store.NewMemoryStore[string, instance.WorkflowInstance](
		func(inst *instance.WorkflowInstance) string { return inst.ID },
		store.WithClone[string, instance.WorkflowInstance](func(inst *instance.WorkflowInstance) *instance.WorkflowInstance { return inst.Clone() }),
		store.WithVersion[string, instance.WorkflowInstance](
			func(inst *instance.WorkflowInstance) int64 { return inst.Version },
			func(inst *instance.WorkflowInstance, version int64) { inst.Version = version },
		),
		store.WithFilter[string, instance.WorkflowInstance](criteria.MatchInstance),
	)}
}

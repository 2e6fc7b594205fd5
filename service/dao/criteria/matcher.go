package criteria

import (
	"time"

	"github.com/spf13/cast"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
)

// Instance list parameter names.
const (
	Status       = "status"
	ApproverID   = "approverId"
	DueBefore    = "dueBefore"
	DefinitionID = "definitionId"
	DocumentID   = "documentId"
	TenantID     = "tenantId"
)

// Filter is the normalised form of instance list parameters.
type Filter struct {
	Statuses     []string
	ApproverID   string
	DueBefore    *time.Time
	DefinitionID string
	DocumentID   string
	TenantID     string
}

// NewFilter converts parameters; unknown names are ignored.
func NewFilter(parameters []*dao.Parameter) *Filter {
	ret := &Filter{}
	for _, param := range parameters {
		if param == nil {
			continue
		}
		switch param.Name {
		case Status:
			ret.Statuses = statuses(param.Value)
		case ApproverID:
			ret.ApproverID = cast.ToString(param.Value)
		case DueBefore:
			if due, err := cast.ToTimeE(param.Value); err == nil {
				ret.DueBefore = &due
			}
		case DefinitionID:
			ret.DefinitionID = cast.ToString(param.Value)
		case DocumentID:
			ret.DocumentID = cast.ToString(param.Value)
		case TenantID:
			ret.TenantID = cast.ToString(param.Value)
		}
	}
	return ret
}

func statuses(value interface{}) []string {
	switch actual := value.(type) {
	case string:
		return []string{actual}
	case instance.Status:
		return []string{string(actual)}
	case []instance.Status:
		ret := make([]string, len(actual))
		for i, status := range actual {
			ret[i] = string(status)
		}
		return ret
	}
	return cast.ToStringSlice(value)
}

// Match reports whether an instance satisfies the filter.
func (f *Filter) Match(inst *instance.WorkflowInstance) bool {
	if len(f.Statuses) > 0 && !contains(f.Statuses, string(inst.Status)) {
		return false
	}
	if f.ApproverID != "" && !inst.IsPendingFor(f.ApproverID) {
		return false
	}
	if f.DueBefore != nil && (inst.TimeoutAt == nil || inst.TimeoutAt.After(*f.DueBefore)) {
		return false
	}
	if f.DefinitionID != "" && inst.WorkflowDefinitionID != f.DefinitionID {
		return false
	}
	if f.DocumentID != "" && inst.DocumentID != f.DocumentID {
		return false
	}
	if f.TenantID != "" && inst.TenantID != f.TenantID {
		return false
	}
	return true
}

// MatchInstance applies parameters to a single instance.
func MatchInstance(inst *instance.WorkflowInstance, parameters []*dao.Parameter) bool {
	return NewFilter(parameters).Match(inst)
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

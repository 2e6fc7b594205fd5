package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/runtime/condition"
)

// Version identifies a published definition revision.
type Version struct {
	Major     int       `json:"major" yaml:"major"`
	Minor     int       `json:"minor" yaml:"minor"`
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// String returns major.minor.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare orders versions by major then minor.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return v.Major - other.Major
	default:
		return v.Minor - other.Minor
	}
}

// Source provides information about the origin of a definition
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// WorkflowDefinition is a versioned approval process graph. A published
// definition is immutable; instances keep their own snapshot.
type WorkflowDefinition struct {
	Source   *Source      `json:"source,omitempty" yaml:"source,omitempty"`
	ID       string       `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	Category string       `json:"category,omitempty" yaml:"category,omitempty"`
	Version  Version      `json:"version" yaml:"version"`
	Graph    *graph.Graph `json:"graph" yaml:"graph"`
	IsActive bool         `json:"isActive" yaml:"isActive"`
	TenantID string       `json:"tenantId,omitempty" yaml:"tenantId,omitempty"`
}

// Validate checks identity fields, graph structure and condition syntax.
func (d *WorkflowDefinition) Validate() error {
	if d == nil {
		return types.NewError(types.CodeDefinitionInvalid, "definition is nil")
	}
	var result *multierror.Error
	if d.ID == "" {
		result = multierror.Append(result, fmt.Errorf("id is required"))
	}
	if d.Version.Major < 0 || d.Version.Minor < 0 {
		result = multierror.Append(result, fmt.Errorf("version %v is invalid", d.Version))
	}
	issues := graph.Validate(d.Graph)
	if d.Graph != nil {
		issues = append(issues, condition.Check(d.Graph)...)
	}
	for _, issue := range issues {
		result = multierror.Append(result, issue)
	}
	if err := result.ErrorOrNil(); err != nil {
		return types.WrapError(types.CodeDefinitionInvalid, err, "definition %v %v", d.ID, d.Version)
	}
	return nil
}

// Clone returns a deep copy that shares nothing with d.
func (d *WorkflowDefinition) Clone() (*WorkflowDefinition, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	ret := &WorkflowDefinition{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// FormIDs returns ids of forms bound by any node, in node order.
func (d *WorkflowDefinition) FormIDs() []string {
	if d == nil || d.Graph == nil {
		return nil
	}
	var result []string
	seen := map[string]bool{}
	for _, node := range d.Graph.Nodes {
		binding := node.FormBinding()
		if binding == nil || binding.FormID == "" || seen[binding.FormID] {
			continue
		}
		seen[binding.FormID] = true
		result = append(result, binding.FormID)
	}
	return result
}

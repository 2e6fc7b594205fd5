package resolver

import (
	"context"
	"fmt"

	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/service/directory"
)

// Service expands approver rules into concrete user ids.
type Service struct {
	directory directory.Directory
}

// Resolve expands a single rule.
func (s *Service) Resolve(ctx context.Context, rule graph.ApproverRule) ([]string, error) {
	switch rule.Type {
	case graph.ApproverUser:
		if rule.ReferenceID == "" {
			return nil, nil
		}
		return []string{rule.ReferenceID}, nil
	case graph.ApproverRole:
		users, err := s.directory.ListUsersByRole(ctx, rule.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("failed to list users of role %v: %w", rule.ReferenceID, err)
		}
		return users, nil
	case graph.ApproverDepartment:
		users, err := s.directory.ListUsersByDepartment(ctx, rule.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("failed to list users of department %v: %w", rule.ReferenceID, err)
		}
		return users, nil
	}
	return nil, fmt.Errorf("unsupported approver type %q", rule.Type)
}

// ResolveRules returns the union of all rules, de-duplicated in order of first appearance.
func (s *Service) ResolveRules(ctx context.Context, rules []graph.ApproverRule) ([]string, error) {
	var result []string
	seen := map[string]bool{}
	for _, rule := range rules {
		users, err := s.Resolve(ctx, rule)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			if user == "" || seen[user] {
				continue
			}
			seen[user] = true
			result = append(result, user)
		}
	}
	return result, nil
}

// ResolveNode resolves the approvers of an approval node at entry.
func (s *Service) ResolveNode(ctx context.Context, config *graph.ApprovalConfig) ([]string, error) {
	if config == nil {
		return nil, nil
	}
	return s.ResolveRules(ctx, config.Approvers)
}

// New creates a resolver over dir.
func New(dir directory.Directory) *Service {
	return &Service{directory: dir}
}

package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/service/directory"
)

type failingDirectory struct{}

func (failingDirectory) ListUsersByRole(context.Context, string) ([]string, error) {
	return nil, errors.New("directory unavailable")
}

func (failingDirectory) ListUsersByDepartment(context.Context, string) ([]string, error) {
	return nil, errors.New("directory unavailable")
}

func TestService_ResolveNode(t *testing.T) {
	dir := directory.NewMemory(
		&directory.User{ID: "ann", Roles: []string{"managers"}, Departments: []string{"finance"}},
		&directory.User{ID: "bob", Roles: []string{"managers"}},
		&directory.User{ID: "cid", Departments: []string{"finance"}},
	)

	type testCase struct {
		description string
		directory   directory.Directory
		rules       []graph.ApproverRule
		expect      []string
		expectErr   bool
	}

	testCases := []testCase{
		{
			description: "user",
			directory:   dir,
			rules:       []graph.ApproverRule{{Type: graph.ApproverUser, ReferenceID: "zed"}},
			expect:      []string{"zed"},
		},
		{
			description: "stable union without duplicates",
			directory:   dir,
			rules: []graph.ApproverRule{
				{Type: graph.ApproverUser, ReferenceID: "cid"},
				{Type: graph.ApproverRole, ReferenceID: "managers"},
				{Type: graph.ApproverDepartment, ReferenceID: "finance"},
			},
			expect: []string{"cid", "ann", "bob"},
		},
		{
			description: "empty role",
			directory:   dir,
			rules:       []graph.ApproverRule{{Type: graph.ApproverRole, ReferenceID: "auditors"}},
		},
		{
			description: "directory failure",
			directory:   failingDirectory{},
			rules:       []graph.ApproverRule{{Type: graph.ApproverRole, ReferenceID: "managers"}},
			expectErr:   true,
		},
		{
			description: "unsupported type",
			directory:   dir,
			rules:       []graph.ApproverRule{{Type: "Group", ReferenceID: "x"}},
			expectErr:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			srv := New(tc.directory)
			actual, err := srv.ResolveNode(context.Background(), &graph.ApprovalConfig{Approvers: tc.rules})
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expect, actual)
		})
	}
}

func TestService_ResolveNodeWithoutConfig(t *testing.T) {
	actual, err := New(directory.NewMemory()).ResolveNode(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, actual)
}

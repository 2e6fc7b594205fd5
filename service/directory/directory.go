package directory

import "context"

// Directory expands role and department references into user ids.
type Directory interface {
	ListUsersByRole(ctx context.Context, roleID string) ([]string, error)
	ListUsersByDepartment(ctx context.Context, departmentID string) ([]string, error)
}

// User is a directory entry.
type User struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Roles       []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Departments []string `json:"departments,omitempty" yaml:"departments,omitempty"`
}

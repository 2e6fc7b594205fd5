package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Memory is an in-process directory; users keep their declaration order.
type Memory struct {
	mu    sync.RWMutex
	users []*User
}

var _ Directory = (*Memory)(nil)

func (m *Memory) ListUsersByRole(_ context.Context, roleID string) ([]string, error) {
	return m.match(func(u *User) []string { return u.Roles }, roleID), nil
}

func (m *Memory) ListUsersByDepartment(_ context.Context, departmentID string) ([]string, error) {
	return m.match(func(u *User) []string { return u.Departments }, departmentID), nil
}

func (m *Memory) match(groups func(u *User) []string, id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []string
	for _, user := range m.users {
		for _, group := range groups(user) {
			if group == id {
				result = append(result, user.ID)
				break
			}
		}
	}
	return result
}

// User returns a user by id or nil.
func (m *Memory) User(id string) *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.ID == id {
			return user
		}
	}
	return nil
}

// Put adds or replaces users.
func (m *Memory) Put(users ...*User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range users {
		replaced := false
		for i, existing := range m.users {
			if existing.ID == user.ID {
				m.users[i] = user
				replaced = true
				break
			}
		}
		if !replaced {
			m.users = append(m.users, user)
		}
	}
}

// Load reads a YAML document with a top-level users list from any afs location.
func (m *Memory) Load(ctx context.Context, fs afs.Service, URL string) error {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to load directory from %s: %w", URL, err)
	}
	var doc struct {
		Users []*User `yaml:"users"`
	}
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode directory %s: %w", URL, err)
	}
	m.Put(doc.Users...)
	return nil
}

// NewMemory creates a directory with users.
func NewMemory(users ...*User) *Memory {
	ret := &Memory{}
	ret.Put(users...)
	return ret
}

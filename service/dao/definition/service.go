package definition

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/approval/internal/clock"
	"github.com/viant/approval/model"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/store"
	"gopkg.in/yaml.v3"
)

// Service is the definition registry. Published revisions are immutable and
// keyed by id and version; the latest revision of an id is the one started.
type Service struct {
	store dao.Service[string, model.WorkflowDefinition]
	fs    afs.Service
	now   clock.Func
	mu    sync.Mutex
}

// Key returns the storage key of a definition revision.
func Key(id string, version model.Version) string {
	return id + "@" + version.String()
}

// Publish validates and stores a new revision. A version not newer than the
// latest published one is replaced by the next minor version.
func (s *Service) Publish(ctx context.Context, def *model.WorkflowDefinition) (*model.WorkflowDefinition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	published, err := def.Clone()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	latest, err := s.latest(ctx, def.ID)
	if err != nil && !errors.Is(err, dao.ErrNotFound) {
		return nil, err
	}
	switch {
	case latest != nil && published.Version.Compare(latest.Version) <= 0:
		published.Version = model.Version{Major: latest.Version.Major, Minor: latest.Version.Minor + 1}
	case latest == nil && published.Version.Major == 0 && published.Version.Minor == 0:
		published.Version = model.Version{Major: 1}
	}
	published.Version.CreatedAt = s.now()
	published.IsActive = true
	if err = s.store.Save(ctx, published); err != nil {
		return nil, err
	}
	return published, nil
}

// Load returns the latest revision of id.
func (s *Service) Load(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	ret, err := s.latest(ctx, id)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, types.WrapError(types.CodeNotFound, err, "workflow definition %v", id)
	}
	return ret, err
}

// LoadVersion returns a specific revision.
func (s *Service) LoadVersion(ctx context.Context, id string, version model.Version) (*model.WorkflowDefinition, error) {
	ret, err := s.store.Load(ctx, Key(id, version))
	if errors.Is(err, dao.ErrNotFound) {
		return nil, types.WrapError(types.CodeNotFound, err, "workflow definition %v", Key(id, version))
	}
	return ret, err
}

// Versions returns every revision of id ordered oldest first.
func (s *Service) Versions(ctx context.Context, id string) ([]*model.WorkflowDefinition, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var result []*model.WorkflowDefinition
	for _, def := range all {
		if def.ID == id {
			result = append(result, def)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version.Compare(result[j].Version) < 0 })
	return result, nil
}

// List returns the latest revision of every definition ordered by id.
func (s *Service) List(ctx context.Context) ([]*model.WorkflowDefinition, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	latest := map[string]*model.WorkflowDefinition{}
	for _, def := range all {
		if current, ok := latest[def.ID]; !ok || def.Version.Compare(current.Version) > 0 {
			latest[def.ID] = def
		}
	}
	result := make([]*model.WorkflowDefinition, 0, len(latest))
	for _, def := range latest {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Deactivate marks the latest revision inactive so no new instance can start from it.
// Running instances are unaffected since they hold their own snapshot.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest, err := s.latest(ctx, id)
	if err != nil {
		return err
	}
	latest.IsActive = false
	return s.store.Save(ctx, latest)
}

func (s *Service) latest(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	versions, err := s.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, dao.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

// DecodeYAML decodes a definition document.
func DecodeYAML(data []byte) (*model.WorkflowDefinition, error) {
	ret := &model.WorkflowDefinition{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, types.WrapError(types.CodeDefinitionInvalid, err, "failed to decode definition")
	}
	return ret, nil
}

// LoadURL reads a YAML definition from any afs location. A missing id
// defaults to the file name without extension.
func (s *Service) LoadURL(ctx context.Context, URL string) (*model.WorkflowDefinition, error) {
	if path.Ext(URL) == "" {
		URL += ".yaml"
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition from %s: %w", URL, err)
	}
	ret, err := DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse definition from %s: %w", URL, err)
	}
	ret.Source = &model.Source{URL: URL}
	if ret.ID == "" {
		name := path.Base(URL)
		ret.ID = strings.TrimSuffix(name, path.Ext(name))
	}
	return ret, nil
}

// Option customises the registry.
type Option func(s *Service)

// WithStore sets the revision store.
func WithStore(store dao.Service[string, model.WorkflowDefinition]) Option {
	return func(s *Service) { s.store = store }
}

// WithFS sets the storage used by LoadURL.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithClock sets the publish time source.
func WithClock(now clock.Func) Option {
	return func(s *Service) { s.now = now }
}

// New creates a registry, in memory unless WithStore is given.
func New(opts ...Option) *Service {
	ret := &Service{fs: afs.New(), now: clock.System}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.store == nil {
		ret.store = store.NewMemoryStore[string, model.WorkflowDefinition](
			func(def *model.WorkflowDefinition) string { return Key(def.ID, def.Version) },
			store.WithClone[string, model.WorkflowDefinition](cloneDefinition),
		)
	}
	return ret
}

func cloneDefinition(def *model.WorkflowDefinition) *model.WorkflowDefinition {
	ret, err := def.Clone()
	if err != nil {
		return def
	}
	return ret
}

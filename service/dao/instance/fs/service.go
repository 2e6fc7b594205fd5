package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/criteria"
)

// Service implements a filesystem-based instance storage; every instance is
// one JSON document named after its id.
type Service struct {
	baseURL string
	fs      afs.Service
	logger  logrus.FieldLogger
	mu      sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[string, instance.WorkflowInstance] = (*Service)(nil)

// Save conditionally writes an instance and increments its version.
func (s *Service) Save(ctx context.Context, inst *instance.WorkflowInstance) error {
	if inst == nil {
		return dao.ErrNilEntity
	}
	if inst.ID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load(ctx, inst.ID)
	if err != nil && !errors.Is(err, dao.ErrNotFound) {
		return err
	}
	var storedVersion int64
	if stored != nil {
		storedVersion = stored.Version
	}
	if err = dao.CheckVersion(stored != nil, storedVersion, inst.Version); err != nil {
		return err
	}
	inst.Version++
	data, err := json.Marshal(inst)
	if err != nil {
		inst.Version--
		return fmt.Errorf("failed to marshal instance: %w", err)
	}
	location := s.instanceURL(inst.ID)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		inst.Version--
		return fmt.Errorf("failed to save instance to file %s: %w", location, err)
	}
	return nil
}

// Load retrieves an instance from the filesystem
func (s *Service) Load(ctx context.Context, id string) (*instance.WorkflowInstance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*instance.WorkflowInstance, error) {
	location := s.instanceURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check if instance exists: %w", err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance file: %w", err)
	}
	ret := &instance.WorkflowInstance{}
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %v: %w", id, err)
	}
	return ret, nil
}

// Delete removes an instance from the filesystem
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	location := s.instanceURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check if instance exists: %w", err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	if err := s.fs.Delete(ctx, location); err != nil {
		return fmt.Errorf("failed to delete instance file: %w", err)
	}
	return nil
}

// List returns instances matching parameters; unreadable files are logged and skipped.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}
	filter := criteria.NewFilter(parameters)
	var result []*instance.WorkflowInstance
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.WithError(err).WithField("url", object.URL()).Warn("failed to read instance file")
			continue
		}
		inst := &instance.WorkflowInstance{}
		if err := json.Unmarshal(data, inst); err != nil {
			s.logger.WithError(err).WithField("url", object.URL()).Warn("failed to unmarshal instance file")
			continue
		}
		if !filter.Match(inst) {
			continue
		}
		result = append(result, inst)
	}
	return result, nil
}

func (s *Service) instanceURL(id string) string {
	return url.Join(s.baseURL, id+".json")
}

// Option customises the fs store.
type Option func(s *Service)

// WithFS sets the storage service.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithLogger sets the logger used for skipped files.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a filesystem instance store rooted at baseURL.
func New(ctx context.Context, baseURL string, opts ...Option) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	ret := &Service{fs: afs.New(), logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(ret)
	}
	exists, _ := ret.fs.Exists(ctx, baseURL)
	if !exists {
		if err := ret.fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	ret.baseURL = url.Normalize(baseURL, file.Scheme)
	return ret, nil
}

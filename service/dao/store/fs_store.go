package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/approval/service/dao"
)

// FSStore is a generic dao.Service keeping every entity as a JSON file named
// after its key under baseURL. Any afs scheme works, mem:// included.
type FSStore[T any] struct {
	baseURL     string
	fs          afs.Service
	keySelector func(*T) string
	filter      func(*T, []*dao.Parameter) bool
	mu          sync.RWMutex
}

// NewFSStore creates a store rooted at baseURL, creating the folder when missing.
func NewFSStore[T any](ctx context.Context, fs afs.Service, baseURL string, keySelector func(*T) string) (*FSStore[T], error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create %v: %w", baseURL, err)
		}
	}
	return &FSStore[T]{baseURL: url.Normalize(baseURL, file.Scheme), fs: fs, keySelector: keySelector}, nil
}

// WithFilter sets the List parameter matcher.
func (s *FSStore[T]) WithFilter(filter func(*T, []*dao.Parameter) bool) *FSStore[T] {
	s.filter = filter
	return s
}

func (s *FSStore[T]) location(key string) string {
	return url.Join(s.baseURL, key+".json")
}

func (s *FSStore[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	if key == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.Upload(ctx, s.location(key), file.DefaultFileOsMode, bytes.NewReader(data))
}

func (s *FSStore[T]) Load(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	location := s.location(key)
	if ok, _ := s.fs.Exists(ctx, location); !ok {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, err
	}
	ret := new(T)
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %v: %w", location, err)
	}
	return ret, nil
}

func (s *FSStore[T]) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.location(key)
	if ok, _ := s.fs.Exists(ctx, location); !ok {
		return dao.ErrNotFound
	}
	return s.fs.Delete(ctx, location)
}

func (s *FSStore[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(false))
	if err != nil {
		return nil, err
	}
	var result []*T
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			return nil, err
		}
		v := new(T)
		if err = json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %v: %w", object.URL(), err)
		}
		if s.filter != nil && !s.filter(v, parameters) {
			continue
		}
		result = append(result, v)
	}
	return result, nil
}

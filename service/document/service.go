package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/approval/model"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/store"
)

// Service implements Store and Forms over two dao services.
type Service struct {
	documents dao.Service[string, model.Document]
	forms     dao.Service[string, model.FormDefinition]
}

var (
	_ Store = (*Service)(nil)
	_ Forms = (*Service)(nil)
)

func (s *Service) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	ret, err := s.documents.Load(ctx, id)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, types.WrapError(types.CodeNotFound, err, "document %v", id)
	}
	return ret, err
}

func (s *Service) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	doc.Status = status
	return s.documents.Save(ctx, doc)
}

func (s *Service) GetForm(ctx context.Context, id string) (*model.FormDefinition, error) {
	ret, err := s.forms.Load(ctx, id)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, types.WrapError(types.CodeNotFound, err, "form %v", id)
	}
	return ret, err
}

// PutDocument stores a document.
func (s *Service) PutDocument(ctx context.Context, doc *model.Document) error {
	return s.documents.Save(ctx, doc)
}

// PutForm stores a form definition.
func (s *Service) PutForm(ctx context.Context, form *model.FormDefinition) error {
	return s.forms.Save(ctx, form)
}

// NewMemory creates an in-memory document and form store.
func NewMemory() *Service {
	return &Service{
		documents: store.NewMemoryStore[string, model.Document](
			func(d *model.Document) string { return d.ID },
			store.WithClone[string, model.Document](cloneDocument),
		),
		forms: store.NewMemoryStore[string, model.FormDefinition](
			func(f *model.FormDefinition) string { return f.ID },
			store.WithClone[string, model.FormDefinition]((*model.FormDefinition).Clone),
		),
	}
}

// NewFS creates a store keeping documents and forms as JSON files under baseURL.
func NewFS(ctx context.Context, fs afs.Service, baseURL string) (*Service, error) {
	documents, err := store.NewFSStore[model.Document](ctx, fs, url.Join(baseURL, "documents"), func(d *model.Document) string { return d.ID })
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	forms, err := store.NewFSStore[model.FormDefinition](ctx, fs, url.Join(baseURL, "forms"), func(f *model.FormDefinition) string { return f.ID })
	if err != nil {
		return nil, fmt.Errorf("failed to open form store: %w", err)
	}
	return &Service{documents: documents, forms: forms}, nil
}

func cloneDocument(doc *model.Document) *model.Document {
	ret := *doc
	if doc.Fields != nil {
		ret.Fields = make(map[string]interface{}, len(doc.Fields))
		for k, v := range doc.Fields {
			ret.Fields[k] = v
		}
	}
	return &ret
}

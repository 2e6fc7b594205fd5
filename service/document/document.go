package document

import (
	"context"

	"github.com/viant/approval/model"
)

// Store is the external document store consulted at start and node entry
// and notified when an instance terminates.
type Store interface {
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
}

// Forms returns form definitions snapshotted at instance start.
type Forms interface {
	GetForm(ctx context.Context, id string) (*model.FormDefinition, error)
}

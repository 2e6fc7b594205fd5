package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/approval/model"
	"github.com/viant/approval/model/state"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/event"
	"github.com/viant/approval/tracing"
)

// Start creates a Running instance of the latest revision of definitionID and
// advances it to the first node that needs input.
func (s *Service) Start(ctx context.Context, definitionID, documentID, startedBy string, variables map[string]interface{}) (ret *instance.WorkflowInstance, err error) {
	ctx, span := tracing.StartSpan(ctx, "executor.start", tracing.KindInternal)
	span.WithAttributes(map[string]string{"definition.id": definitionID, "document.id": documentID})
	defer func() { tracing.EndSpan(span, err) }()

	if definitionID == "" || documentID == "" {
		return nil, types.NewError(types.CodeInvalidRequest, "definition id and document id are required")
	}
	def, err := s.definitions.Load(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	if !def.IsActive {
		return nil, types.NewError(types.CodeDefinitionInactive, "workflow definition %v %v is inactive", def.ID, def.Version)
	}
	if err = def.Validate(); err != nil {
		return nil, err
	}
	snapshot, err := def.Clone()
	if err != nil {
		return nil, types.WrapError(types.CodeDefinitionInvalid, err, "failed to snapshot definition %v", def.ID)
	}
	vars, err := state.NewVariables(variables)
	if err != nil {
		return nil, types.WrapError(types.CodeInvalidRequest, err, "invalid initial variables")
	}
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	forms, err := s.snapshotForms(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inst := &instance.WorkflowInstance{
		ID:                         s.newID(),
		WorkflowDefinitionID:       snapshot.ID,
		DocumentID:                 documentID,
		TenantID:                   snapshot.TenantID,
		Status:                     instance.StatusRunning,
		Variables:                  vars,
		StartedBy:                  startedBy,
		StartedAt:                  now,
		WorkflowDefinitionSnapshot: snapshot,
		FormDefinitionSnapshots:    forms,
		Positions:                  []*instance.Position{{ID: instance.RootPositionID}},
	}
	if inst.TenantID == "" {
		inst.TenantID = doc.TenantID
	}
	span.WithAttributes(map[string]string{"instance.id": inst.ID})
	tx, err := s.newTransition(inst, now)
	if err != nil {
		return nil, err
	}
	tx.document = doc
	tx.emit(event.TypeInstanceStarted, nil, "", event.Detail{Status: string(inst.Status)})
	if err = tx.enter(ctx, inst.Root(), snapshot.Graph.Start().ID); err != nil {
		return nil, err
	}
	inst.Refresh(now)
	if err = s.store.Save(ctx, inst); err != nil {
		if errors.Is(err, dao.ErrConflict) {
			return nil, types.WrapError(types.CodeConflict, err, "instance %v already exists", inst.ID)
		}
		return nil, fmt.Errorf("failed to save instance %v: %w", inst.ID, err)
	}
	s.apply(ctx, inst, tx)
	s.logger.WithFields(logrus.Fields{
		"instance":   inst.ID,
		"definition": inst.WorkflowDefinitionID,
		"node":       inst.CurrentNodeID,
	}).Info("instance started")
	return inst, nil
}

func (s *Service) snapshotForms(ctx context.Context, def *model.WorkflowDefinition) (map[string]*model.FormDefinition, error) {
	ids := def.FormIDs()
	if len(ids) == 0 || s.forms == nil {
		return nil, nil
	}
	ret := make(map[string]*model.FormDefinition, len(ids))
	for _, id := range ids {
		form, err := s.forms.GetForm(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot form %v: %w", id, err)
		}
		ret[id] = form.Clone()
	}
	return ret, nil
}

package executor

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/viant/approval/model"
	"github.com/viant/approval/model/state"
	"github.com/viant/approval/model/types"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/event"
	"github.com/viant/approval/tracing"
)

// Cancel terminates a Running instance.
func (s *Service) Cancel(ctx context.Context, instanceID, reason string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "executor.cancel", tracing.KindInternal)
	span.WithAttributes(map[string]string{"instance.id": instanceID})
	defer func() { tracing.EndSpan(span, err) }()
	_, _, err = s.mutate(ctx, instanceID, func(ctx context.Context, tx *transition) error {
		if tx.inst.Status.Terminal() {
			return types.NewError(types.CodeInstanceNotActive, "instance %v is %v", tx.inst.ID, tx.inst.Status)
		}
		tx.inst.CancelReason = reason
		tx.finish(instance.StatusCancelled, model.DocumentStatusCancelled)
		tx.emit(event.TypeInstanceCancelled, tx.inst.Root(), tx.inst.CurrentNodeID, event.Detail{
			Status: string(instance.StatusCancelled),
			Reason: reason,
		})
		return nil
	})
	if err == nil {
		s.logger.WithFields(logrus.Fields{"instance": instanceID, "reason": reason}).Info("instance cancelled")
	}
	return err
}

// RetryFault enters the faulted nodes again, typically after variables or the
// directory were fixed. Without positionIDs every faulted position is retried.
func (s *Service) RetryFault(ctx context.Context, instanceID string, positionIDs ...string) (ret *instance.WorkflowInstance, err error) {
	ctx, span := tracing.StartSpan(ctx, "executor.retryFault", tracing.KindInternal)
	span.WithAttributes(map[string]string{"instance.id": instanceID})
	defer func() { tracing.EndSpan(span, err) }()
	ret, _, err = s.mutate(ctx, instanceID, func(ctx context.Context, tx *transition) error {
		inst := tx.inst
		if inst.Status.Terminal() {
			return types.NewError(types.CodeInstanceNotActive, "instance %v is %v", inst.ID, inst.Status)
		}
		faulted := inst.Faulted()
		if len(positionIDs) > 0 {
			var selected []*instance.Position
			for _, id := range positionIDs {
				pos := inst.Position(id)
				if pos == nil || pos.Fault == nil {
					return types.NewError(types.CodeInvalidRequest, "position %v of instance %v has no fault", id, inst.ID)
				}
				selected = append(selected, pos)
			}
			faulted = selected
		}
		if len(faulted) == 0 {
			return types.NewError(types.CodeInvalidRequest, "instance %v has no fault", inst.ID)
		}
		for _, pos := range faulted {
			// an earlier retry may have joined or terminated this position
			if inst.Status.Terminal() || inst.Position(pos.ID) != pos || pos.Fault == nil {
				continue
			}
			nodeID := pos.Fault.NodeID
			pos.Fault = nil
			if err := tx.enter(ctx, pos, nodeID); err != nil {
				return err
			}
		}
		return nil
	})
	return ret, err
}

// UpdateVariables merges values into the instance variables, overwriting per key.
func (s *Service) UpdateVariables(ctx context.Context, instanceID string, values map[string]interface{}) (ret *instance.WorkflowInstance, err error) {
	ctx, span := tracing.StartSpan(ctx, "executor.updateVariables", tracing.KindInternal)
	span.WithAttributes(map[string]string{"instance.id": instanceID})
	defer func() { tracing.EndSpan(span, err) }()
	update, err := state.NewVariables(values)
	if err != nil {
		return nil, types.WrapError(types.CodeInvalidRequest, err, "invalid variables")
	}
	ret, _, err = s.mutate(ctx, instanceID, func(ctx context.Context, tx *transition) error {
		if tx.inst.Status.Terminal() {
			return types.NewError(types.CodeInstanceNotActive, "instance %v is %v", tx.inst.ID, tx.inst.Status)
		}
		tx.inst.Variables.Merge(update)
		return nil
	})
	return ret, err
}

// Package approval provides a multi-tenant approval workflow engine.
//
// Workflow definitions are versioned graphs of approval, condition and
// parallel nodes. Each instance binds one definition revision to one business
// document and advances as approvers act or deadlines expire. The root
// package wires the engine services behind a single Service facade:
//
//	srv, _ := approval.New(ctx)
//	_, _ = srv.PublishDefinition(ctx, def)
//	id, _ := srv.StartInstance(ctx, def.ID, "doc-1", "alice", nil)
//	outcome, _ := srv.SubmitApprovalAction(ctx, &approval.ActionRequest{
//		InstanceID: id, ApproverID: "bob", Action: "Approve",
//	})
//
// Runtime starts the background timeout sweeper and the event listener.
package approval

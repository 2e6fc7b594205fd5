package instance

import "time"

// Summary describes one pending approval task of an instance.
type Summary struct {
	InstanceID     string     `json:"instanceId"`
	DefinitionID   string     `json:"definitionId"`
	DefinitionName string     `json:"definitionName,omitempty"`
	DocumentID     string     `json:"documentId"`
	TenantID       string     `json:"tenantId,omitempty"`
	NodeID         string     `json:"nodeId"`
	NodeLabel      string     `json:"nodeLabel,omitempty"`
	StartedBy      string     `json:"startedBy,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	TimeoutAt      *time.Time `json:"timeoutAt,omitempty"`
}

// TasksFor returns a summary for every active position awaiting approverID.
func (w *WorkflowInstance) TasksFor(approverID string) []*Summary {
	if w.Status != StatusRunning {
		return nil
	}
	var result []*Summary
	for _, pos := range w.Positions {
		if pos.Waiting || !contains(pos.Pending, approverID) {
			continue
		}
		summary := &Summary{
			InstanceID:   w.ID,
			DefinitionID: w.WorkflowDefinitionID,
			DocumentID:   w.DocumentID,
			TenantID:     w.TenantID,
			NodeID:       pos.NodeID,
			StartedBy:    w.StartedBy,
			StartedAt:    w.StartedAt,
			TimeoutAt:    cloneTime(pos.TimeoutAt),
		}
		if def := w.WorkflowDefinitionSnapshot; def != nil {
			summary.DefinitionName = def.Name
			if def.Graph != nil {
				if node := def.Graph.Node(pos.NodeID); node != nil {
					summary.NodeLabel = node.Label
				}
			}
		}
		result = append(result, summary)
	}
	return result
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

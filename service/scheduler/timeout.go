package scheduler

import (
	"time"

	"github.com/viant/approval/model/graph"
)

// ComputeTimeoutAt returns the deadline of an approval node entered at now,
// or nil when the node has no timeout.
func ComputeTimeoutAt(config *graph.ApprovalConfig, now time.Time) *time.Time {
	if config == nil || config.TimeoutHours <= 0 {
		return nil
	}
	ret := now.Add(time.Duration(config.TimeoutHours * float64(time.Hour)))
	return &ret
}

// Policy returns the timeout action of a node, falling back to the engine default.
func Policy(config *graph.ApprovalConfig, fallback string) string {
	if config != nil && config.TimeoutAction != "" {
		return config.TimeoutAction
	}
	if fallback == "" {
		return graph.TimeoutActionNone
	}
	return fallback
}

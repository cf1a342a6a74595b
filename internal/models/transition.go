// internal/models/transition.go
package models

import "time"

// TransitionKind names the four tracked status movements.
type TransitionKind string

const (
	TransitionPendingToUnassigned  TransitionKind = "pending_to_unassigned"
	TransitionUnassignedToAssigned TransitionKind = "unassigned_to_assigned"
	TransitionAssignedToApproval   TransitionKind = "assigned_to_pending_approval"
	TransitionToCompleted          TransitionKind = "to_completed"
)

// StatusTransitionEvent is one append-only ETA sample. DurationHours for the
// completion kind excludes time spent waiting for approval.
type StatusTransitionEvent struct {
	AssignmentID  string         `json:"assignmentId"`
	Practice      string         `json:"practice"`
	FromStatus    Status         `json:"fromStatus"`
	ToStatus      Status         `json:"toStatus"`
	Kind          TransitionKind `json:"kind"`
	DurationHours float64        `json:"durationHours"`
	RecordedAt    time.Time      `json:"recordedAt"`
}

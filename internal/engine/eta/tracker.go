// internal/engine/eta/tracker.go
package eta

import (
	"context"
	"time"

	"intake-engine/internal/common/logger"
	"intake-engine/internal/models"
)

// Sink receives one correctly computed transition sample; aggregation
// happens downstream.
type Sink interface {
	Index(ctx context.Context, event models.StatusTransitionEvent) error
}

// Snapshot captures the timing fields an assignment had before a state
// operation mutated it. Durations are always computed against the prior
// values, never the post-transition ones.
type Snapshot struct {
	StatusChangedAt      time.Time
	AssignedAt           time.Time
	PendingApprovalSince time.Time
	PendingApprovalHours float64
}

// Capture snapshots the timing fields; call before applying state ops.
func Capture(a *models.Assignment) Snapshot {
	return Snapshot{
		StatusChangedAt:      a.StatusChangedAt,
		AssignedAt:           a.AssignedAt,
		PendingApprovalSince: a.PendingApprovalSince,
		PendingApprovalHours: a.PendingApprovalHours,
	}
}

// Tracker classifies status transitions and hands duration samples to
// the sink.
type Tracker struct {
	sink   Sink
	logger logger.Logger
}

func NewTracker(sink Sink, log logger.Logger) *Tracker {
	return &Tracker{sink: sink, logger: log}
}

// Record emits one sample for a tracked transition. Untracked
// transitions are a silent no-op. The completion kind subtracts all time
// spent waiting for approval, so SLA figures reflect working time only.
func (t *Tracker) Record(ctx context.Context, a *models.Assignment, prior Snapshot, from, to models.Status, practice string, at time.Time) error {
	kind, tracked := classify(from, to)
	if !tracked {
		return nil
	}

	var hours float64
	if kind == models.TransitionToCompleted {
		start := prior.AssignedAt
		if start.IsZero() {
			start = prior.StatusChangedAt
		}
		wait := prior.PendingApprovalHours
		if !prior.PendingApprovalSince.IsZero() {
			wait += at.Sub(prior.PendingApprovalSince).Hours()
		}
		hours = at.Sub(start).Hours() - wait
		if hours < 0 {
			hours = 0
		}
	} else if !prior.StatusChangedAt.IsZero() {
		hours = at.Sub(prior.StatusChangedAt).Hours()
	}

	event := models.StatusTransitionEvent{
		AssignmentID:  a.ID,
		Practice:      practice,
		FromStatus:    from,
		ToStatus:      to,
		Kind:          kind,
		DurationHours: hours,
		RecordedAt:    at,
	}

	if err := t.sink.Index(ctx, event); err != nil {
		t.logger.Warn("eta sample not indexed", map[string]interface{}{
			"assignmentId": a.ID,
			"kind":         string(kind),
			"error":        err.Error(),
		})
		return err
	}
	return nil
}

func classify(from, to models.Status) (models.TransitionKind, bool) {
	switch {
	case from == models.StatusPending && to == models.StatusUnassigned:
		return models.TransitionPendingToUnassigned, true
	case from == models.StatusUnassigned && to == models.StatusAssigned:
		return models.TransitionUnassignedToAssigned, true
	case from == models.StatusAssigned && to == models.StatusPendingApproval:
		return models.TransitionAssignedToApproval, true
	case to == models.StatusComplete &&
		(from == models.StatusAssigned || from == models.StatusPendingApproval):
		return models.TransitionToCompleted, true
	}
	return "", false
}

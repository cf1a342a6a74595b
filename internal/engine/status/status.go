// internal/engine/status/status.go
//
// Pure state-machine operations over assignment records. Nothing here
// performs I/O; callers persist the mutated record and dispatch the
// returned change list.
package status

import (
	"time"

	"intake-engine/internal/models"
)

// Change describes one observable transition, either of the overall
// status (Assignee empty) or of a single assignee+practice pair.
type Change struct {
	AssignmentID string
	Practice     string
	Assignee     string
	From         string
	To           string
}

func overallChange(a *models.Assignment, from, to models.Status) Change {
	return Change{
		AssignmentID: a.ID,
		From:         string(from),
		To:           string(to),
	}
}

func pairChange(a *models.Assignment, assignee, practice string, from, to models.PairState) Change {
	return Change{
		AssignmentID: a.ID,
		Assignee:     assignee,
		Practice:     practice,
		From:         string(from),
		To:           string(to),
	}
}

// ClassifyPractices records the resolved practice set on a Pending
// assignment and advances it to Unassigned. A nil or empty set leaves
// the assignment Pending.
func ClassifyPractices(a *models.Assignment, practices []string, now time.Time) []Change {
	if len(practices) == 0 {
		return nil
	}
	if a.PracticeAssignees == nil {
		a.PracticeAssignees = make(map[string][]string, len(practices))
	}
	for _, p := range practices {
		if _, ok := a.PracticeAssignees[p]; !ok {
			a.PracticeAssignees[p] = []string{}
		}
	}
	if a.Status != models.StatusPending {
		return nil
	}
	a.Status = models.StatusUnassigned
	a.StatusChangedAt = now
	return []Change{overallChange(a, models.StatusPending, models.StatusUnassigned)}
}

// MarkAssigned applies an auto-assignment result: merged assignee map,
// region, and the coverage-verified status.
func MarkAssigned(a *models.Assignment, practiceAssignees map[string][]string, region string, covered bool, now time.Time) []Change {
	a.PracticeAssignees = practiceAssignees
	if region != "" {
		a.Region = region
	}
	if !covered || a.Status == models.StatusAssigned {
		return nil
	}
	from := a.Status
	a.Status = models.StatusAssigned
	a.StatusChangedAt = now
	if a.AssignedAt.IsZero() {
		a.AssignedAt = now
	}
	return []Change{overallChange(a, from, models.StatusAssigned)}
}

// ApplyApprovalRequest moves every pair scoped to the practice into
// PendingApproval as one batch, stamping the revision for later gating.
func ApplyApprovalRequest(a *models.Assignment, practice, revision string, now time.Time) []Change {
	assignees, ok := a.PracticeAssignees[practice]
	if !ok {
		return nil
	}
	if a.Completion == nil {
		a.Completion = make(map[string]models.CompletionEntry)
	}

	var changes []Change
	for _, assignee := range assignees {
		entry := pairEntry(a, assignee, practice)
		if entry.State == models.PairPendingApproval && entry.Revision == revision {
			continue
		}
		from := entry.State
		setPair(a, assignee, practice, models.CompletionEntry{
			State:    models.PairPendingApproval,
			Revision: revision,
		})
		changes = append(changes, pairChange(a, assignee, practice, from, models.PairPendingApproval))
	}

	changes = append(changes, Recompute(a, now)...)
	return changes
}

// ApplyApproval advances pairs scoped to the practice from
// PendingApproval to ApprovedComplete. A pair whose stored revision
// differs from the event's is skipped; its siblings still advance.
func ApplyApproval(a *models.Assignment, practice, revision string, now time.Time) []Change {
	assignees, ok := a.PracticeAssignees[practice]
	if !ok {
		return nil
	}
	if a.Completion == nil {
		a.Completion = make(map[string]models.CompletionEntry)
	}

	var changes []Change
	for _, assignee := range assignees {
		entry := pairEntry(a, assignee, practice)
		if entry.State != models.PairPendingApproval {
			continue
		}
		if entry.Revision != "" && entry.Revision != revision {
			continue
		}
		setPair(a, assignee, practice, models.CompletionEntry{
			State:    models.PairApprovedComplete,
			Revision: entry.Revision,
		})
		changes = append(changes, pairChange(a, assignee, practice, models.PairPendingApproval, models.PairApprovedComplete))
	}

	changes = append(changes, Recompute(a, now)...)
	return changes
}

// TogglePair flips one pair between ApprovedComplete and InProgress.
// Safe to apply independently of other pairs; the caller's conditional
// write serializes concurrent toggles on the same assignment.
func TogglePair(a *models.Assignment, assignee, practice string, now time.Time) []Change {
	if a.Completion == nil {
		a.Completion = make(map[string]models.CompletionEntry)
	}

	entry := pairEntry(a, assignee, practice)
	from := entry.State
	to := models.PairApprovedComplete
	if from == models.PairApprovedComplete {
		to = models.PairInProgress
	}
	setPair(a, assignee, practice, models.CompletionEntry{State: to, Revision: entry.Revision})

	changes := []Change{pairChange(a, assignee, practice, from, to)}
	changes = append(changes, Recompute(a, now)...)
	return changes
}

// RemovePractice drops a practice from the declared map and purges every
// completion entry scoped to it.
func RemovePractice(a *models.Assignment, practice string, now time.Time) []Change {
	assignees, ok := a.PracticeAssignees[practice]
	if !ok {
		return nil
	}
	delete(a.PracticeAssignees, practice)

	for _, assignee := range assignees {
		delete(a.Completion, models.CompletionKey{Assignee: assignee, Practice: practice}.String())
		// A bare key is only valid while the assignee covers a single
		// practice; if that practice is the one being removed, purge it.
		if a.PracticeCount(assignee) == 0 {
			delete(a.Completion, models.CompletionKey{Assignee: assignee}.String())
		}
	}

	return Recompute(a, now)
}

// Recompute derives the overall status from the pair states: Complete
// iff every pair is ApprovedComplete, PendingApproval iff every pair is
// PendingApproval, otherwise Assigned. It also maintains the
// pending-approval time accounting used by ETA sampling.
func Recompute(a *models.Assignment, now time.Time) []Change {
	switch a.Status {
	case models.StatusAssigned, models.StatusPendingApproval, models.StatusComplete:
	default:
		// Pre-assignment statuses are owned by the classification and
		// coverage transitions, not pair bookkeeping.
		return nil
	}

	next := deriveStatus(a)
	if next == a.Status {
		return nil
	}

	from := a.Status
	if from == models.StatusPendingApproval && !a.PendingApprovalSince.IsZero() {
		a.PendingApprovalHours += now.Sub(a.PendingApprovalSince).Hours()
		a.PendingApprovalSince = time.Time{}
	}
	if next == models.StatusPendingApproval {
		a.PendingApprovalSince = now
	}

	a.Status = next
	a.StatusChangedAt = now
	return []Change{overallChange(a, from, next)}
}

func deriveStatus(a *models.Assignment) models.Status {
	total := 0
	complete := 0
	pending := 0
	for practice, assignees := range a.PracticeAssignees {
		if len(assignees) == 0 {
			// An uncovered practice can never be complete.
			return models.StatusAssigned
		}
		for _, assignee := range assignees {
			total++
			entry := pairEntry(a, assignee, practice)
			switch entry.State {
			case models.PairApprovedComplete:
				complete++
			case models.PairPendingApproval:
				pending++
			}
		}
	}
	if total == 0 {
		return models.StatusAssigned
	}
	if complete == total {
		return models.StatusComplete
	}
	if pending == total {
		return models.StatusPendingApproval
	}
	return models.StatusAssigned
}

// pairEntry resolves the completion entry for a pair, accepting both the
// practice-qualified and the bare key form. Absent entries read as
// InProgress.
func pairEntry(a *models.Assignment, assignee, practice string) models.CompletionEntry {
	qualified := models.CompletionKey{Assignee: assignee, Practice: practice}.String()
	if entry, ok := a.Completion[qualified]; ok {
		return entry
	}
	bare := models.CompletionKey{Assignee: assignee}.String()
	if entry, ok := a.Completion[bare]; ok {
		return entry
	}
	return models.CompletionEntry{State: models.PairInProgress}
}

// setPair stores the entry under the canonical key form: bare when the
// assignee covers one practice, practice-qualified when several. Both
// forms are cleared first so a stale variant cannot shadow the write.
func setPair(a *models.Assignment, assignee, practice string, entry models.CompletionEntry) {
	qualified := models.CompletionKey{Assignee: assignee, Practice: practice}.String()
	bare := models.CompletionKey{Assignee: assignee}.String()

	canonical := bare
	if a.PracticeCount(assignee) > 1 {
		canonical = qualified
	}

	delete(a.Completion, qualified)
	delete(a.Completion, bare)
	a.Completion[canonical] = entry
}

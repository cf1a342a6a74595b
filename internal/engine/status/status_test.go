// internal/engine/status/status_test.go
package status

import (
	"testing"
	"time"

	"intake-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createAssignment(status models.Status, practices map[string][]string) *models.Assignment {
	return &models.Assignment{
		ID:                "asg-1",
		Status:            status,
		PracticeAssignees: practices,
		Completion:        map[string]models.CompletionEntry{},
	}
}

func pairState(a *models.Assignment, key string) models.PairState {
	return a.Completion[key].State
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// ==========================
// Core Functionality Tests
// ==========================

func TestClassifyPractices(t *testing.T) {
	t.Run("pending advances to unassigned", func(t *testing.T) {
		a := createAssignment(models.StatusPending, nil)
		changes := ClassifyPractices(a, []string{"Security"}, now)

		assert.Equal(t, models.StatusUnassigned, a.Status)
		assert.Equal(t, now, a.StatusChangedAt)
		require.Len(t, changes, 1)
		assert.Equal(t, string(models.StatusPending), changes[0].From)
		assert.Equal(t, string(models.StatusUnassigned), changes[0].To)
	})

	t.Run("empty practice set stays pending", func(t *testing.T) {
		a := createAssignment(models.StatusPending, nil)
		changes := ClassifyPractices(a, nil, now)
		assert.Equal(t, models.StatusPending, a.Status)
		assert.Empty(t, changes)
	})

	t.Run("existing assignees preserved", func(t *testing.T) {
		a := createAssignment(models.StatusUnassigned, map[string][]string{
			"Security": {"Sam"},
		})
		ClassifyPractices(a, []string{"Security", "Wireless"}, now)
		assert.Equal(t, []string{"Sam"}, a.PracticeAssignees["Security"])
		assert.Empty(t, a.PracticeAssignees["Wireless"])
	})
}

func TestMarkAssigned(t *testing.T) {
	a := createAssignment(models.StatusUnassigned, map[string][]string{"Security": {}})

	changes := MarkAssigned(a, map[string][]string{"Security": {"Sam"}}, "DAL", true, now)

	assert.Equal(t, models.StatusAssigned, a.Status)
	assert.Equal(t, "DAL", a.Region)
	assert.Equal(t, []string{"Sam"}, a.PracticeAssignees["Security"])
	require.Len(t, changes, 1)

	// Uncovered coverage keeps the assignment Unassigned.
	b := createAssignment(models.StatusUnassigned, map[string][]string{"Security": {}})
	changes = MarkAssigned(b, map[string][]string{"Security": {}}, "", false, now)
	assert.Equal(t, models.StatusUnassigned, b.Status)
	assert.Empty(t, changes)
}

func TestRecompute_IsPureOverPairStates(t *testing.T) {
	tests := []struct {
		name       string
		practices  map[string][]string
		completion map[string]models.CompletionEntry
		expected   models.Status
	}{
		{
			name: "all pairs complete",
			practices: map[string][]string{
				"Collaboration": {"Alice"},
				"Security":      {"Bob"},
			},
			completion: map[string]models.CompletionEntry{
				"Alice::Collaboration": {State: models.PairApprovedComplete},
				"Bob::Security":        {State: models.PairApprovedComplete},
			},
			expected: models.StatusComplete,
		},
		{
			name: "empty completion map",
			practices: map[string][]string{
				"Collaboration": {"Alice"},
				"Security":      {"Bob"},
			},
			completion: map[string]models.CompletionEntry{},
			expected:   models.StatusAssigned,
		},
		{
			name: "all pairs pending approval",
			practices: map[string][]string{
				"Security": {"Alice", "Bob"},
			},
			completion: map[string]models.CompletionEntry{
				"Alice": {State: models.PairPendingApproval},
				"Bob":   {State: models.PairPendingApproval},
			},
			expected: models.StatusPendingApproval,
		},
		{
			name: "mixed pair states",
			practices: map[string][]string{
				"Security": {"Alice", "Bob"},
			},
			completion: map[string]models.CompletionEntry{
				"Alice": {State: models.PairApprovedComplete},
			},
			expected: models.StatusAssigned,
		},
		{
			name: "uncovered practice blocks completion",
			practices: map[string][]string{
				"Security": {"Alice"},
				"Wireless": {},
			},
			completion: map[string]models.CompletionEntry{
				"Alice": {State: models.PairApprovedComplete},
			},
			expected: models.StatusAssigned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := createAssignment(models.StatusAssigned, tt.practices)
			a.Completion = tt.completion
			Recompute(a, now)
			assert.Equal(t, tt.expected, a.Status)
		})
	}
}

func TestRecompute_LeavesPreAssignmentStatusesAlone(t *testing.T) {
	a := createAssignment(models.StatusUnassigned, map[string][]string{"Security": {"Alice"}})
	a.Completion["Alice"] = models.CompletionEntry{State: models.PairApprovedComplete}

	changes := Recompute(a, now)
	assert.Empty(t, changes)
	assert.Equal(t, models.StatusUnassigned, a.Status)
}

func TestApplyApprovalRequest_BatchesAllPairs(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{
		"Security": {"Alice", "Bob", "Cara"},
	})

	changes := ApplyApprovalRequest(a, "Security", "rev-7", now)

	for _, assignee := range []string{"Alice", "Bob", "Cara"} {
		entry := a.Completion[assignee]
		assert.Equal(t, models.PairPendingApproval, entry.State, assignee)
		assert.Equal(t, "rev-7", entry.Revision, assignee)
	}
	assert.Equal(t, models.StatusPendingApproval, a.Status)
	assert.Equal(t, now, a.PendingApprovalSince)
	// Three pair changes plus the overall transition.
	assert.Len(t, changes, 4)
}

func TestApplyApprovalRequest_UnknownPracticeIsNoOp(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{"Security": {"Alice"}})
	changes := ApplyApprovalRequest(a, "Wireless", "rev-1", now)
	assert.Empty(t, changes)
	assert.Empty(t, a.Completion)
}

func TestApplyApprovalRequest_Idempotent(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{"Security": {"Alice"}})

	first := ApplyApprovalRequest(a, "Security", "rev-1", now)
	require.NotEmpty(t, first)

	second := ApplyApprovalRequest(a, "Security", "rev-1", now.Add(time.Hour))
	assert.Empty(t, second, "re-applying the same request must not produce changes")
}

func TestApplyApproval_RevisionGating(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{
		"Security": {"Alice", "Bob"},
	})
	ApplyApprovalRequest(a, "Security", "rev-1", now)

	// Bob's stored revision is bumped; the approval event carries rev-1.
	a.Completion["Bob"] = models.CompletionEntry{
		State:    models.PairPendingApproval,
		Revision: "rev-2",
	}

	changes := ApplyApproval(a, "Security", "rev-1", now.Add(time.Hour))

	assert.Equal(t, models.PairApprovedComplete, pairState(a, "Alice"),
		"matching revision advances")
	assert.Equal(t, models.PairPendingApproval, pairState(a, "Bob"),
		"mismatched revision is skipped")
	assert.Equal(t, models.StatusAssigned, a.Status)

	var pairChanges int
	for _, c := range changes {
		if c.Assignee != "" {
			pairChanges++
		}
	}
	assert.Equal(t, 1, pairChanges)
}

func TestApplyApproval_EmptyRevisionAlwaysAdvances(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{"Security": {"Alice"}})
	ApplyApprovalRequest(a, "Security", "", now)

	ApplyApproval(a, "Security", "anything", now.Add(time.Hour))
	assert.Equal(t, models.PairApprovedComplete, pairState(a, "Alice"))
	assert.Equal(t, models.StatusComplete, a.Status)
}

func TestApplyApproval_InProgressPairsUntouched(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{"Security": {"Alice"}})
	changes := ApplyApproval(a, "Security", "rev-1", now)
	assert.Empty(t, changes)
	assert.Empty(t, a.Completion)
}

func TestTogglePair(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{"Security": {"Alice"}})

	TogglePair(a, "Alice", "Security", now)
	assert.Equal(t, models.PairApprovedComplete, pairState(a, "Alice"))
	assert.Equal(t, models.StatusComplete, a.Status)

	TogglePair(a, "Alice", "Security", now.Add(time.Hour))
	assert.Equal(t, models.PairInProgress, pairState(a, "Alice"))
	assert.Equal(t, models.StatusAssigned, a.Status)
}

func TestCompletionKey_DisambiguatesMultiPracticeAssignees(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{
		"Security": {"Alice"},
		"Wireless": {"Alice"},
	})

	TogglePair(a, "Alice", "Security", now)

	// Alice covers two practices, so the key carries the practice.
	assert.Contains(t, a.Completion, "Alice::Security")
	assert.NotContains(t, a.Completion, "Alice")
	assert.Equal(t, models.StatusAssigned, a.Status,
		"Wireless pair still in progress")

	TogglePair(a, "Alice", "Wireless", now)
	assert.Equal(t, models.StatusComplete, a.Status)
}

func TestRemovePractice_PurgesScopedEntries(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{
		"Security": {"Alice"},
		"Wireless": {"Alice", "Wendy"},
	})
	TogglePair(a, "Alice", "Security", now)
	TogglePair(a, "Alice", "Wireless", now)
	TogglePair(a, "Wendy", "Wireless", now)
	require.Equal(t, models.StatusComplete, a.Status)

	RemovePractice(a, "Wireless", now.Add(time.Hour))

	assert.NotContains(t, a.PracticeAssignees, "Wireless")
	assert.NotContains(t, a.Completion, "Alice::Wireless")
	assert.NotContains(t, a.Completion, "Wendy")
	assert.Contains(t, a.Completion, "Alice::Security")
	assert.Equal(t, models.StatusComplete, a.Status)
}

func TestRecompute_PendingApprovalTimeAccounting(t *testing.T) {
	a := createAssignment(models.StatusAssigned, map[string][]string{"Security": {"Alice"}})

	ApplyApprovalRequest(a, "Security", "rev-1", now)
	require.Equal(t, models.StatusPendingApproval, a.Status)
	require.Equal(t, now, a.PendingApprovalSince)

	ApplyApproval(a, "Security", "rev-1", now.Add(3*time.Hour))
	assert.Equal(t, models.StatusComplete, a.Status)
	assert.InDelta(t, 3.0, a.PendingApprovalHours, 0.001)
	assert.True(t, a.PendingApprovalSince.IsZero())
}

// internal/models/assignment.go
package models

import (
	"sort"
	"strings"
	"time"
)

// Status is the overall assignment state. Transitions follow
// Pending -> Unassigned -> Assigned -> PendingApproval -> Complete.
type Status string

const (
	StatusPending         Status = "Pending"
	StatusUnassigned      Status = "Unassigned"
	StatusAssigned        Status = "Assigned"
	StatusPendingApproval Status = "PendingApproval"
	StatusComplete        Status = "Complete"
)

// PairState tracks one assignee+practice pair independently of the
// overall status.
type PairState string

const (
	PairInProgress       PairState = "InProgress"
	PairPendingApproval  PairState = "PendingApproval"
	PairApprovedComplete PairState = "ApprovedComplete"
)

// CompletionKey identifies an assignee+practice pair. The practice
// component is set only when the assignee covers more than one practice
// on the same assignment.
type CompletionKey struct {
	Assignee string
	Practice string
}

const completionKeySep = "::"

// String renders the canonical map-key form: "assignee" or
// "assignee::practice".
func (k CompletionKey) String() string {
	if k.Practice == "" {
		return k.Assignee
	}
	return k.Assignee + completionKeySep + k.Practice
}

// ParseCompletionKey splits a stored map key back into its components.
func ParseCompletionKey(s string) CompletionKey {
	if i := strings.Index(s, completionKeySep); i >= 0 {
		return CompletionKey{Assignee: s[:i], Practice: s[i+len(completionKeySep):]}
	}
	return CompletionKey{Assignee: s}
}

// CompletionEntry is the tracked state of one pair. Revision is set by an
// approval request and gates later approval events.
type CompletionEntry struct {
	State    PairState `json:"state"`
	Revision string    `json:"revision,omitempty"`
}

// Assignment is the structured record built from an intake email.
type Assignment struct {
	ID             string     `json:"id"`
	Kind           ActionKind `json:"kind"`
	OpportunityID  string     `json:"opportunityId"`
	Status         Status     `json:"status"`
	AccountManager Person     `json:"accountManager"`
	Region         string     `json:"region"`

	// PracticeAssignees maps each declared practice to its assignee names.
	PracticeAssignees map[string][]string `json:"practiceAssignees"`

	// Completion is keyed by CompletionKey.String().
	Completion map[string]CompletionEntry `json:"completion"`

	// Version guards read-modify-write updates; the store rejects a patch
	// whose version does not match the stored row.
	Version int `json:"version"`

	StatusChangedAt time.Time `json:"statusChangedAt"`

	// AssignedAt is when the assignment first reached Assigned; the
	// completion ETA sample measures working time from here.
	AssignedAt           time.Time `json:"assignedAt,omitempty"`
	PendingApprovalSince time.Time `json:"pendingApprovalSince,omitempty"`
	PendingApprovalHours float64   `json:"pendingApprovalHours"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Practices returns the declared practice names in stable order.
func (a *Assignment) Practices() []string {
	out := make([]string, 0, len(a.PracticeAssignees))
	for p := range a.PracticeAssignees {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Assignees returns the de-duplicated assignee names across all practices.
func (a *Assignment) Assignees() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, names := range a.PracticeAssignees {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}

// PracticeCount reports how many declared practices the assignee covers.
func (a *Assignment) PracticeCount(assignee string) int {
	count := 0
	for _, names := range a.PracticeAssignees {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), strings.TrimSpace(assignee)) {
				count++
				break
			}
		}
	}
	return count
}

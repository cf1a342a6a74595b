// internal/engine/assign/engine.go
package assign

import (
	"context"
	"sort"
	"strings"

	"intake-engine/internal/common/logger"
	"intake-engine/internal/models"
)

// Directory exposes the user lookups the engine cross-references
// assignee practice affiliations against.
type Directory interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, email string) (*models.User, error)
}

// MappingSource scans historical specialist-to-owner mapping rows.
type MappingSource interface {
	ScanMappingsByOwner(ctx context.Context, ownerEmail string) ([]models.SAToAMMapping, error)
}

// Result is the outcome of one auto-assignment attempt. Skipped results
// are not errors: the assignment simply cannot be auto-assigned yet.
type Result struct {
	Skipped bool
	Reason  string

	Status            models.Status
	Region            string
	PracticeAssignees map[string][]string
	NewAssignees      []string
}

// Engine assigns specialists onto an assignment's uncovered practices
// from historical mapping data keyed by the owning account manager.
type Engine struct {
	directory Directory
	mappings  MappingSource
	logger    logger.Logger
}

func NewEngine(directory Directory, mappings MappingSource, log logger.Logger) *Engine {
	return &Engine{
		directory: directory,
		mappings:  mappings,
		logger:    log,
	}
}

// Assign resolves the owner, finds practices no current assignee covers,
// and merges in specialists from mapping rows for that owner. The
// returned status is Assigned only when every declared practice ends up
// covered by directory-verified data.
func (e *Engine) Assign(ctx context.Context, a *models.Assignment) (*Result, error) {
	if len(a.PracticeAssignees) == 0 {
		return &Result{Skipped: true, Reason: "no practices declared"}, nil
	}

	users, err := e.directory.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	owner, ok := e.resolveOwner(a.AccountManager, users)
	if !ok {
		return &Result{Skipped: true, Reason: "owner not resolved"}, nil
	}

	practicesByName := indexPracticesByName(users)
	uncovered := uncoveredPractices(a, practicesByName)

	merged := clonePracticeMap(a.PracticeAssignees)
	var newAssignees []string

	var rows []models.SAToAMMapping
	if len(uncovered) > 0 {
		rows, err = e.mappings.ScanMappingsByOwner(ctx, owner)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			hits := intersect(row.Practices, uncovered)
			if len(hits) == 0 {
				continue
			}
			for _, practice := range hits {
				if addAssignee(merged, practice, row.SpecialistName) {
					newAssignees = appendUnique(newAssignees, row.SpecialistName)
				}
				// The mapping row vouches for this specialist's practice
				// when the directory has no record of them.
				if _, known := practicesByName[foldName(row.SpecialistName)]; !known {
					practicesByName[foldName(row.SpecialistName)] = row.Practices
				}
			}
		}
	}

	status := models.StatusUnassigned
	if allCovered(a.Practices(), merged, practicesByName) {
		status = models.StatusAssigned
	}

	region := a.Region
	if region == "" {
		region = resolveRegion(rows, newAssignees)
	}

	sort.Strings(newAssignees)
	e.logger.Info("auto-assignment evaluated", map[string]interface{}{
		"assignmentId": a.ID,
		"owner":        owner,
		"uncovered":    uncovered,
		"newAssignees": newAssignees,
		"status":       string(status),
	})

	return &Result{
		Status:            status,
		Region:            region,
		PracticeAssignees: merged,
		NewAssignees:      newAssignees,
	}, nil
}

// resolveOwner takes the declared email directly, or falls back to a
// directory name lookup.
func (e *Engine) resolveOwner(am models.Person, users []models.User) (string, bool) {
	if am.Email != "" {
		return strings.ToLower(strings.TrimSpace(am.Email)), true
	}
	if am.Name == "" {
		return "", false
	}
	for _, u := range users {
		if strings.EqualFold(strings.TrimSpace(u.Name), strings.TrimSpace(am.Name)) {
			return strings.ToLower(u.Email), true
		}
	}
	return "", false
}

// Practice comparison is case-insensitive and trimmed throughout.
func foldPractice(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

func foldName(n string) string {
	return strings.ToLower(strings.TrimSpace(n))
}

func indexPracticesByName(users []models.User) map[string][]string {
	out := make(map[string][]string, len(users))
	for _, u := range users {
		out[foldName(u.Name)] = u.Practices
	}
	return out
}

// uncoveredPractices returns declared practices no existing assignee's
// affiliation list covers.
func uncoveredPractices(a *models.Assignment, practicesByName map[string][]string) []string {
	var out []string
	for _, practice := range a.Practices() {
		covered := false
		for _, assignee := range a.PracticeAssignees[practice] {
			if listContains(practicesByName[foldName(assignee)], practice) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, practice)
		}
	}
	return out
}

func allCovered(declared []string, merged map[string][]string, practicesByName map[string][]string) bool {
	for _, practice := range declared {
		covered := false
		for _, assignee := range merged[practice] {
			if listContains(practicesByName[foldName(assignee)], practice) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// resolveRegion takes the agreed region of the matched rows, or the
// lexicographic minimum when they disagree.
func resolveRegion(rows []models.SAToAMMapping, matchedNames []string) string {
	matched := make(map[string]bool, len(matchedNames))
	for _, n := range matchedNames {
		matched[foldName(n)] = true
	}

	region := ""
	for _, row := range rows {
		if !matched[foldName(row.SpecialistName)] || row.Region == "" {
			continue
		}
		if region == "" || row.Region < region {
			region = row.Region
		}
	}
	return region
}

func listContains(list []string, practice string) bool {
	target := foldPractice(practice)
	for _, p := range list {
		if foldPractice(p) == target {
			return true
		}
	}
	return false
}

func intersect(rowPractices, uncovered []string) []string {
	var out []string
	for _, u := range uncovered {
		if listContains(rowPractices, u) {
			out = append(out, u)
		}
	}
	return out
}

func clonePracticeMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for p, names := range in {
		out[p] = append([]string(nil), names...)
	}
	return out
}

// addAssignee appends the name under the practice unless already listed;
// reports whether it was added.
func addAssignee(m map[string][]string, practice, name string) bool {
	for _, existing := range m[practice] {
		if foldName(existing) == foldName(name) {
			return false
		}
	}
	m[practice] = append(m[practice], name)
	return true
}

func appendUnique(list []string, name string) []string {
	for _, existing := range list {
		if foldName(existing) == foldName(name) {
			return list
		}
	}
	return append(list, name)
}

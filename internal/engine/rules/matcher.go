// internal/engine/rules/matcher.go
package rules

import (
	"sort"
	"strings"

	"intake-engine/internal/models"
)

// Match selects the first enabled rule whose configured patterns all
// match the email. Absent patterns and the wildcard are satisfied by
// anything. No match is not an error: the email is simply left alone.
func Match(email models.InboundEmail, rules []models.ProcessingRule) (*models.ProcessingRule, bool) {
	ordered := make([]models.ProcessingRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	for i := range ordered {
		r := &ordered[i]
		if !r.Enabled {
			continue
		}
		if !patternMatches(r.SenderPattern, email.Sender) {
			continue
		}
		if !patternMatches(r.SubjectPattern, email.Subject) {
			continue
		}
		if !patternMatches(r.BodyPattern, email.Body) {
			continue
		}
		return r, true
	}
	return nil, false
}

// patternMatches is a case-insensitive substring check; empty and
// wildcard patterns match everything.
func patternMatches(pattern, value string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.EqualFold(pattern, models.WildcardPattern) {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

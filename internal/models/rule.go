// internal/models/rule.go
package models

// ActionKind selects which intake action a matched rule triggers.
type ActionKind string

const (
	ActionResourceAssignment   ActionKind = "resource_assignment"
	ActionSAAssignment         ActionKind = "sa_assignment"
	ActionSAApprovalRequest    ActionKind = "sa_assignment_approval_request"
	ActionSAAssignmentApproved ActionKind = "sa_assignment_approved"
)

// WildcardPattern matches any value when used as a rule pattern.
const WildcardPattern = "anyone"

// KeywordMapping ties a keyword found in email text to the field its
// trailing text populates. Order matters: mappings are applied in sequence.
type KeywordMapping struct {
	Keyword string `json:"keyword"`
	Field   string `json:"field"`
}

// ProcessingRule decides whether an inbound email is handled and how.
// Patterns are optional substrings; an empty or "anyone" pattern matches
// everything. Rules are evaluated in Order and the first match wins.
type ProcessingRule struct {
	ID              string           `json:"id"`
	Order           int              `json:"order"`
	SenderPattern   string           `json:"senderPattern"`
	SubjectPattern  string           `json:"subjectPattern"`
	BodyPattern     string           `json:"bodyPattern"`
	Action          ActionKind       `json:"action"`
	KeywordMappings []KeywordMapping `json:"keywordMappings"`
	Enabled         bool             `json:"enabled"`
}

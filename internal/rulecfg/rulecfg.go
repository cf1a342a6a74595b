// internal/rulecfg/rulecfg.go
package rulecfg

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	commonerrors "intake-engine/internal/common/errors"
	"intake-engine/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// rulesSchema constrains the external rule documents before they are
// trusted: unknown actions and malformed mappings are configuration
// errors, not runtime surprises.
const rulesSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "order", "action", "enabled"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"order": {"type": "integer"},
			"senderPattern": {"type": "string"},
			"subjectPattern": {"type": "string"},
			"bodyPattern": {"type": "string"},
			"action": {
				"type": "string",
				"enum": [
					"resource_assignment",
					"sa_assignment",
					"sa_assignment_approval_request",
					"sa_assignment_approved"
				]
			},
			"keywordMappings": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["keyword", "field"],
					"properties": {
						"keyword": {"type": "string", "minLength": 1},
						"field": {"type": "string", "minLength": 1}
					}
				}
			},
			"enabled": {"type": "boolean"}
		}
	}
}`

// Load reads and validates the processing rules at path, returning them
// sorted by configured order.
func Load(path string) ([]models.ProcessingRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw rule JSON against the schema and decodes it.
func Parse(data []byte) ([]models.ProcessingRule, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rulesSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("rule validation failed: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, commonerrors.NewRuleConfigInvalidError(strings.Join(problems, "; "))
	}

	var rules []models.ProcessingRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Order < rules[j].Order
	})
	return rules, nil
}

// internal/engine/extract/extractor.go
package extract

import (
	"context"
	"html"
	"regexp"
	"strings"

	"intake-engine/internal/common/logger"
	"intake-engine/internal/models"
)

// NotFound marks a field the extractor looked for but could not find.
// Distinct from "" so callers can tell a miss from an unconfigured field.
const NotFound = "Not Found"

// Well-known field names with special extraction behavior.
const (
	FieldEmailChain  = "emailChain"
	FieldSubmittedBy = "submittedBy"
	FieldTechTable   = "techTable"
	FieldRegion      = "region"
)

// Sentinel markers bounding the fixed-schema technology table block.
const (
	techBlockBegin = "=== BEGIN TECH ==="
	techBlockEnd   = "=== END TECH ==="
)

var (
	emailRegex   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	brTagRegex   = regexp.MustCompile(`(?i)<br\s*/?>`)
	personSplits = regexp.MustCompile(`[,;]`)
)

// Field is one extracted value. People is populated only for the
// recipient-list field; Value carries everything else.
type Field struct {
	Value  string          `json:"value"`
	People []models.Person `json:"people,omitempty"`
}

// Found reports whether extraction produced anything usable.
func (f Field) Found() bool {
	return f.Value != NotFound || len(f.People) > 0
}

// FieldSet is the transient field-name → value mapping built per email.
type FieldSet map[string]Field

// Directory resolves bare names in recipient lists to directory users.
type Directory interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
}

// Extractor pulls named fields out of raw email text by keyword position.
// Pure transform over immutable input; the only outbound call is the
// directory name-lookup fallback for recipient lists.
type Extractor struct {
	directory Directory
	logger    logger.Logger
	scanLines int
}

func NewExtractor(directory Directory, log logger.Logger, scanLines int) *Extractor {
	if scanLines <= 0 {
		scanLines = 4
	}
	return &Extractor{
		directory: directory,
		logger:    log,
		scanLines: scanLines,
	}
}

// Extract runs every keyword mapping against the text and returns the
// resulting field set. Missing fields are set to the NotFound sentinel.
func (e *Extractor) Extract(ctx context.Context, text string, mappings []models.KeywordMapping) FieldSet {
	clean := normalize(text)
	lines := strings.Split(clean, "\n")

	fields := make(FieldSet, len(mappings))
	for _, m := range mappings {
		switch m.Field {
		case FieldEmailChain:
			fields[m.Field] = e.extractEmailChain(ctx, lines, m.Keyword)
		case FieldSubmittedBy:
			fields[m.Field] = Field{Value: e.extractSubmittedBy(lines)}
		case FieldTechTable:
			fields[m.Field] = Field{Value: extractBlock(clean)}
		case FieldRegion:
			fields[m.Field] = Field{Value: e.extractRegion(lines, m.Keyword)}
		default:
			fields[m.Field] = Field{Value: e.extractValue(lines, m.Keyword)}
		}
	}
	return fields
}

// normalize folds <br>-family entities into literal newlines and decodes
// HTML entities before any keyword positioning happens.
func normalize(text string) string {
	text = brTagRegex.ReplaceAllString(text, "\n")
	return html.UnescapeString(text)
}

// extractValue finds the first case-insensitive keyword occurrence and
// takes the remainder of that line; if that yields nothing it scans up to
// scanLines following non-blank lines.
func (e *Extractor) extractValue(lines []string, keyword string) string {
	lowerKeyword := strings.ToLower(keyword)
	for i, line := range lines {
		idx := strings.Index(strings.ToLower(line), lowerKeyword)
		if idx < 0 {
			continue
		}

		candidate := cleanCandidate(line[idx+len(keyword):])
		if candidate != "" {
			return candidate
		}

		scanned := 0
		for j := i + 1; j < len(lines) && scanned < e.scanLines; j++ {
			next := cleanCandidate(lines[j])
			if next == "" {
				continue
			}
			scanned++
			return next
		}
		return NotFound
	}
	return NotFound
}

// cleanCandidate trims separators and whitespace a keyword line usually
// carries between the keyword and its value.
func cleanCandidate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ":-")
	return strings.TrimSpace(s)
}

// extractSubmittedBy tolerates the common "submited by" misspelling.
func (e *Extractor) extractSubmittedBy(lines []string) string {
	if v := e.extractValue(lines, "submitted by"); v != NotFound {
		return v
	}
	return e.extractValue(lines, "submited by")
}

// extractBlock lifts everything between the technology table sentinels.
func extractBlock(text string) string {
	begin := strings.Index(text, techBlockBegin)
	if begin < 0 {
		return NotFound
	}
	rest := text[begin+len(techBlockBegin):]
	end := strings.Index(rest, techBlockEnd)
	if end < 0 {
		return NotFound
	}
	block := strings.TrimSpace(rest[:end])
	if block == "" {
		return NotFound
	}
	return block
}

// extractRegion validates the candidate against the closed region code
// set. Oversized or unrecognized values are discarded, not stored.
func (e *Extractor) extractRegion(lines []string, keyword string) string {
	candidate := e.extractValue(lines, keyword)
	if candidate == NotFound {
		return NotFound
	}
	code, ok := CanonicalRegion(candidate)
	if !ok {
		e.logger.Debug("region candidate rejected", map[string]interface{}{
			"candidate": candidate,
		})
		return NotFound
	}
	return code
}

// extractEmailChain parses a recipient list: addresses are matched by
// regex first, then remaining bare names go through the directory lookup.
func (e *Extractor) extractEmailChain(ctx context.Context, lines []string, keyword string) Field {
	candidate := e.extractValue(lines, keyword)
	if candidate == NotFound {
		return Field{Value: NotFound}
	}

	var people []models.Person
	seen := make(map[string]bool)

	for _, addr := range emailRegex.FindAllString(candidate, -1) {
		addr = strings.ToLower(addr)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		people = append(people, models.Person{Email: addr})
	}

	remainder := emailRegex.ReplaceAllString(candidate, "")
	names := collectNames(remainder)

	var users []models.User
	if (len(people) > 0 || len(names) > 0) && e.directory != nil {
		var err error
		users, err = e.directory.GetAllUsers(ctx)
		if err != nil {
			e.logger.Warn("directory lookup failed during recipient parse", map[string]interface{}{
				"error": err.Error(),
			})
			users = nil
		}
	}

	// Backfill names for regex-matched addresses when the directory knows
	// them.
	for i := range people {
		for _, u := range users {
			if strings.EqualFold(u.Email, people[i].Email) {
				people[i].Name = u.Name
				break
			}
		}
	}

	for _, name := range names {
		for _, u := range users {
			if !strings.EqualFold(u.Name, name) {
				continue
			}
			addr := strings.ToLower(u.Email)
			if seen[addr] {
				break
			}
			seen[addr] = true
			people = append(people, models.Person{Name: u.Name, Email: addr})
			break
		}
	}

	if len(people) == 0 {
		return Field{Value: NotFound}
	}

	// The value keeps the raw candidate for audit.
	return Field{Value: candidate, People: people}
}

func collectNames(s string) []string {
	var names []string
	for _, part := range personSplits.Split(s, -1) {
		part = strings.Trim(part, " \t<>\"'")
		if part == "" {
			continue
		}
		names = append(names, part)
	}
	return names
}

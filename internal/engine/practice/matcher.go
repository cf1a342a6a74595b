// internal/engine/practice/matcher.go
package practice

import (
	"regexp"
	"strings"

	"intake-engine/internal/common/logger"
)

// Default score thresholds. Table-derived technology names are noisier,
// so they get a looser cutoff.
const (
	DefaultThreshold      = 0.4
	DefaultTableThreshold = 0.2
)

// Weights blending whole-string edit similarity against token-level
// semantic similarity.
const (
	editWeight     = 0.4
	semanticWeight = 0.6
)

// Token pair scoring: exact, phonetic (equal Soundex), or discounted
// edit similarity.
const (
	phoneticScore = 0.8
	editDiscount  = 0.6
)

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// abbreviations expands domain shorthand into the full tokens used by
// the canonical practice names.
var abbreviations = map[string][]string{
	"av":    {"audio", "visual"},
	"uc":    {"unified", "communications"},
	"dc":    {"data", "center"},
	"en":    {"enterprise", "networking"},
	"cc":    {"contact", "center"},
	"sec":   {"security"},
	"wlan":  {"wireless"},
	"comms": {"communications"},
}

// Matcher maps free-text technology mentions onto a canonical practice
// list using a blended edit-distance/phonetic/token score.
type Matcher struct {
	practices []string
	logger    logger.Logger
}

func NewMatcher(practices []string, log logger.Logger) *Matcher {
	return &Matcher{
		practices: practices,
		logger:    log,
	}
}

// Match returns the highest-scoring canonical practice for the
// candidate, provided the score meets the threshold. ok is false when
// nothing clears it; callers fall back to a "Pending" classification.
func (m *Matcher) Match(candidate string, threshold float64) (string, float64, bool) {
	cleaned := preprocess(candidate)
	if cleaned == "" {
		return "", 0, false
	}

	best := ""
	bestScore := 0.0
	for _, p := range m.practices {
		s := m.score(cleaned, preprocess(p))
		if s > bestScore {
			best = p
			bestScore = s
		}
	}

	if bestScore < threshold {
		m.logger.Debug("no practice cleared threshold", map[string]interface{}{
			"candidate": candidate,
			"best":      best,
			"score":     bestScore,
			"threshold": threshold,
		})
		return "", bestScore, false
	}
	return best, bestScore, true
}

func (m *Matcher) score(candidate, practice string) float64 {
	edit := editSimilarity(candidate, practice)
	semantic := semanticSimilarity(candidate, practice)
	return editWeight*edit + semanticWeight*semantic
}

// preprocess lowercases and drops punctuation. Parenthetical markers are
// removed but their content survives as tokens, so "(uc)" still carries
// its abbreviation into semantic scoring.
func preprocess(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = tokenSplit.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// semanticSimilarity compares abbreviation-expanded token sets. Each
// token of the larger set takes its best score against the other set;
// the scores are averaged over the larger set's size.
func semanticSimilarity(a, b string) float64 {
	ta := expandTokens(a)
	tb := expandTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	larger, smaller := ta, tb
	if len(tb) > len(ta) {
		larger, smaller = tb, ta
	}

	total := 0.0
	for _, lt := range larger {
		best := 0.0
		for _, st := range smaller {
			if s := tokenScore(lt, st); s > best {
				best = s
			}
		}
		total += best
	}
	return total / float64(len(larger))
}

func tokenScore(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if soundex(a) == soundex(b) {
		return phoneticScore
	}
	return editSimilarity(a, b) * editDiscount
}

func expandTokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		if expanded, ok := abbreviations[tok]; ok {
			out = append(out, expanded...)
			continue
		}
		out = append(out, tok)
	}
	return out
}

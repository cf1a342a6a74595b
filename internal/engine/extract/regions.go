// internal/engine/extract/regions.go
package extract

import "strings"

// maxRegionLen caps region candidates; anything longer is noise from a
// mis-positioned keyword hit.
const maxRegionLen = 20

// regionCodes is the closed set of canonical region codes.
var regionCodes = []string{
	"ATL", "AUS", "BOS", "CHI", "CLT", "DAL", "DEN", "DET",
	"LAX", "MIA", "MSP", "NYC", "PHX", "SEA", "SFO", "STL",
}

// CanonicalRegion resolves a free-text candidate to a canonical region
// code. Exact matches win; otherwise the first code contained in the
// candidate is taken. Candidates over maxRegionLen are rejected outright.
func CanonicalRegion(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || len(candidate) > maxRegionLen {
		return "", false
	}

	upper := strings.ToUpper(candidate)
	for _, code := range regionCodes {
		if upper == code {
			return code, true
		}
	}
	for _, code := range regionCodes {
		if strings.Contains(upper, code) {
			return code, true
		}
	}
	return "", false
}

// RegionCodes returns a copy of the canonical code set.
func RegionCodes() []string {
	out := make([]string, len(regionCodes))
	copy(out, regionCodes)
	return out
}

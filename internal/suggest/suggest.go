// Package suggest offers "did you mean" candidates for mistyped names.
package suggest

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Closest returns the candidate nearest to input, if any candidate is
// close enough to be a plausible typo. Matching is case-insensitive
// and candidates are considered in sorted order so ties are stable.
func Closest(input string, candidates []string) (string, bool) {
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	lower := strings.ToLower(input)
	best := ""
	bestDist := -1
	for _, c := range sorted {
		dist := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if bestDist == -1 || dist < bestDist {
			best, bestDist = c, dist
		}
	}
	if best == "" {
		return "", false
	}

	// A third of the longer name is the edit budget for a typo.
	maxLen := len(lower)
	if len(best) > maxLen {
		maxLen = len(best)
	}
	if bestDist*3 > maxLen {
		return "", false
	}
	return best, true
}

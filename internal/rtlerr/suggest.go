package rtlerr

import (
	"github.com/agnivade/levenshtein"
)

// Suggest returns the candidate closest to name by edit distance, or "" when
// nothing is close enough to be a plausible typo.
func Suggest(name string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 {
		return ""
	}
	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist > limit {
		return ""
	}
	return best
}

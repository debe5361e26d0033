package registry

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestThreshold is the minimum Jaro-Winkler similarity for a candidate
// to be offered as a correction.
const suggestThreshold = 0.8

// Suggest returns the candidate closest to name, compared case-insensitively
// with Jaro-Winkler similarity. It returns false when no candidate is close
// enough to be a plausible typo.
func Suggest(name string, candidates []string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return "", false
	}

	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := matchr.JaroWinkler(needle, strings.ToLower(c), false)
		if score > bestScore || (score == bestScore && c < best) {
			best, bestScore = c, score
		}
	}
	if bestScore < suggestThreshold {
		return "", false
	}
	return best, true
}

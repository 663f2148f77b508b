package utils

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeTitle folds case and Unicode forms so "Amélie" typed by hand
// matches the title stored by the media server
func NormalizeTitle(title string) string {
	return folder.String(norm.NFKC.String(strings.TrimSpace(title)))
}

// TitlesMatch checks if two titles are equal after normalization
func TitlesMatch(a, b string) bool {
	return NormalizeTitle(a) == NormalizeTitle(b)
}

// ClosestTitle returns the candidate with the smallest edit distance to
// title, or "" when there are no candidates
// Returns (closest, distance)
func ClosestTitle(title string, candidates []string) (string, int) {
	want := NormalizeTitle(title)

	closest := ""
	best := -1
	for _, candidate := range candidates {
		d := levenshtein.ComputeDistance(want, NormalizeTitle(candidate))
		if best < 0 || d < best {
			closest = candidate
			best = d
		}
	}

	return closest, best
}

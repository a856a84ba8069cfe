package dataset

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/volatiletech/strmangle"
)

// minSuggestionRatio is difflib's usual get_close_matches cutoff.
const minSuggestionRatio = 0.6

var headerReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_", "\ufeff", "")

// NormalizeHeader turns spreadsheet-style headers into the canonical TitleCase names,
// eg. "student_id", "Student ID" and "StudentID" all become "StudentID".
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(headerReplacer.Replace(strings.TrimSpace(h)))
	if strings.Trim(h, "_") == "" {
		return ""
	}
	if !strings.Contains(h, "_") && h != strings.ToLower(h) && h != strings.ToUpper(h) {
		return h // already TitleCase
	}
	return strmangle.TitleCase(strings.ToLower(h))
}

// closestHeader returns the raw header most similar to `col`, or "" if none is close enough.
func closestHeader(col string, headers []string) string {
	var best string
	var bestRatio float64
	target := strings.Split(strings.ToLower(col), "")
	for _, h := range headers {
		cand := strings.Split(strings.ToLower(strings.TrimSpace(h)), "")
		ratio := difflib.NewMatcher(target, cand).Ratio()
		if ratio >= minSuggestionRatio && ratio > bestRatio {
			best, bestRatio = strings.TrimSpace(h), ratio
		}
	}
	return best
}

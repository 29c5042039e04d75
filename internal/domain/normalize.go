package domain

import (
	"strings"
	"unicode"
)

// NormalizeTitle folds a title into the stable key used across every cache
// tier: lowercased, punctuation treated as a separator, runs of separators
// collapsed to a single space, leading/trailing space trimmed.
func NormalizeTitle(title string) string {
	title = strings.ToLower(title)

	var b strings.Builder
	b.Grow(len(title))

	prevSpace := false
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

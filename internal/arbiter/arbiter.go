// Package arbiter selects the winning candidate when several sources report
// counts for the same title.
package arbiter

import "github.com/varoOP/tankodb/internal/domain"

// Pick returns the best candidate: the one with the highest chapter count,
// ties broken by the fixed adapter priority order (structured APIs outrank
// HTML scrapers). A zero-chapter candidate is "no data", not "zero chapters
// exist", so it only wins when it is the only candidate. The second return
// is false when the list is empty.
func Pick(candidates []domain.Candidate) (domain.Candidate, bool) {
	if len(candidates) == 0 {
		return domain.Candidate{}, false
	}

	eligible := candidates
	if nonZero := withChapters(candidates); len(nonZero) > 0 {
		eligible = nonZero
	}

	best := eligible[0]
	for _, c := range eligible[1:] {
		if c.ChapterCount > best.ChapterCount {
			best = c
			continue
		}
		if c.ChapterCount == best.ChapterCount && c.Priority < best.Priority {
			best = c
		}
	}

	return best, true
}

func withChapters(candidates []domain.Candidate) []domain.Candidate {
	var out []domain.Candidate
	for _, c := range candidates {
		if c.ChapterCount > 0 {
			out = append(out, c)
		}
	}
	return out
}

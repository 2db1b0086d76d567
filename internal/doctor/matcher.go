package doctor

import (
	"context"

	"medmatch/internal/platform/metrics"
	"medmatch/internal/specialty"
)

// MaxMatches caps the doctors returned for one analysis.
const MaxMatches = 6

// Matcher finds directory doctors whose primary specialty is one of the
// canonical labels behind a list of suggested specialties.
type Matcher struct {
	repo        Repository
	specialties *specialty.Normalizer
}

func NewMatcher(repo Repository, specialties *specialty.Normalizer) *Matcher {
	return &Matcher{repo: repo, specialties: specialties}
}

// Match normalizes each suggestion and returns at most MaxMatches doctors with
// an exact primary-specialty match. No suggestions means no query.
func (m *Matcher) Match(ctx context.Context, suggested []string) ([]Doctor, error) {
	labels := m.Canonicalize(suggested)
	if len(labels) == 0 {
		return []Doctor{}, nil
	}

	ds, err := m.repo.ListBySpecialties(ctx, labels, MaxMatches)
	if err != nil {
		return nil, err
	}
	if len(ds) > MaxMatches {
		ds = ds[:MaxMatches]
	}
	metrics.ObserveMatch(len(ds))
	return ds, nil
}

// Canonicalize maps suggestions to their distinct canonical labels in first
// appearance order. Blank suggestions are skipped.
func (m *Matcher) Canonicalize(suggested []string) []string {
	seen := make(map[string]bool, len(suggested))
	labels := make([]string, 0, len(suggested))
	for _, s := range suggested {
		if specialty.Canonicalize(s) == "" {
			continue
		}
		label := m.specialties.Normalize(s)
		if label == specialty.Fallback {
			metrics.IncSpecialtyFallback()
		}
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	return labels
}

package search

import (
	"sort"
	"strings"

	"github.com/dfalcao/precario/internal/classify"
	"github.com/dfalcao/precario/internal/domain"
	"github.com/shopspring/decimal"
)

// Normalize converts raw search-index results into the candidate arena:
// entries with a blocked source label or a missing/non-numeric/non-positive
// price are discarded, survivors are stable-sorted ascending by list price and
// the most expensive tail is dropped past maxCandidates.
//
// Pure: the same input always yields the same output, and empty input is an
// empty arena, not an error.
func Normalize(raw []domain.RawResult, classifier *classify.Classifier, maxCandidates int) []*domain.Candidate {
	candidates := make([]*domain.Candidate, 0, len(raw))

	for _, r := range raw {
		if classifier.IsBlockedSource(r.Source) {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(r.Price))
		if err != nil || !price.IsPositive() {
			continue
		}
		candidates = append(candidates, &domain.Candidate{
			Title:        r.Title,
			Source:       r.Source,
			ListPrice:    price,
			ProductToken: r.ProductToken,
			Status:       domain.CandidatePending,
		})
	}

	// Stable: ties keep the search index's relevance order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ListPrice.LessThan(candidates[j].ListPrice)
	})

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	for i, c := range candidates {
		c.ID = i + 1
	}
	return candidates
}

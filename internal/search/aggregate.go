package search

import (
	"github.com/dfalcao/precario/internal/domain"
	"github.com/shopspring/decimal"
)

// Aggregate computes the summary statistics over the accepted candidates and
// maps the count against the target to the terminal status. Pure function.
func Aggregate(accepted []*domain.Candidate, target int, diag domain.Diagnostics) domain.Outcome {
	out := domain.Outcome{Diagnostics: diag}

	if len(accepted) == 0 {
		out.Status = domain.SearchFailure
		return out
	}

	sum := decimal.Zero
	min := accepted[0].SettledPrice
	max := accepted[0].SettledPrice
	for _, c := range accepted {
		p := c.SettledPrice
		sum = sum.Add(p)
		if p.LessThan(min) {
			min = p
		}
		if p.GreaterThan(max) {
			max = p
		}
		out.Accepted = append(out.Accepted, domain.AcceptedSource{
			Title:        c.Title,
			Domain:       c.StoreDomain,
			URL:          c.StoreURL,
			SettledPrice: p,
			Evidence:     c.Evidence,
		})
	}

	out.Mean = sum.Div(decimal.NewFromInt(int64(len(accepted)))).Round(2)
	out.Min = min
	out.Max = max
	out.VariationPct = max.Div(min).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Round(2)

	if len(accepted) >= target {
		out.Status = domain.SearchSuccess
	} else {
		out.Status = domain.SearchPartial
	}
	return out
}

package search

import (
	"sort"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/shopspring/decimal"
)

// Block is a contiguous window of price-sorted candidates whose relative
// spread fits inside the tolerance ceiling in effect when it was formed.
// Blocks are recomputed from scratch on every re-formation, never mutated.
type Block struct {
	Members   []*domain.Candidate // ascending by list price
	Min       decimal.Decimal
	Max       decimal.Decimal
	Variation decimal.Decimal // (Max - Min) / Min
}

func (b *Block) ValidCount() int {
	n := 0
	for _, c := range b.Members {
		if c.Status == domain.CandidateValid {
			n++
		}
	}
	return n
}

func (b *Block) PendingCount() int {
	n := 0
	for _, c := range b.Members {
		if c.Status == domain.CandidatePending {
			n++
		}
	}
	return n
}

func (b *Block) ValidMembers() []*domain.Candidate {
	out := make([]*domain.Candidate, 0, len(b.Members))
	for _, c := range b.Members {
		if c.Status == domain.CandidateValid {
			out = append(out, c)
		}
	}
	return out
}

// FormBlocks grows a window forward from every start index while the spread
// against the anchor price stays within tolerance, keeps windows that can
// still reach target validated members, and ranks them largest first with the
// cheapest anchor breaking ties.
//
// Callers pass the working set: sorted ascending, failed candidates already
// filtered out. Prices are strictly positive by construction (normalization
// discards the rest), so the division is safe.
func FormBlocks(candidates []*domain.Candidate, tolerance decimal.Decimal, target int) []*Block {
	if len(candidates) == 0 {
		return nil
	}

	var blocks []*Block
	for i := range candidates {
		anchor := candidates[i].ListPrice
		j := i + 1
		for j < len(candidates) {
			spread := candidates[j].ListPrice.Sub(anchor).Div(anchor)
			if spread.GreaterThan(tolerance) {
				break
			}
			j++
		}
		if j-i < target {
			continue
		}

		b := &Block{
			Members: candidates[i:j],
			Min:     anchor,
			Max:     candidates[j-1].ListPrice,
		}
		b.Variation = b.Max.Sub(b.Min).Div(b.Min)

		// Eligibility: a block that cannot mathematically reach the target is
		// never surfaced to the scheduler.
		if b.ValidCount()+b.PendingCount() < target {
			continue
		}
		blocks = append(blocks, b)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if len(blocks[i].Members) != len(blocks[j].Members) {
			return len(blocks[i].Members) > len(blocks[j].Members)
		}
		return blocks[i].Min.LessThan(blocks[j].Min)
	})
	return blocks
}

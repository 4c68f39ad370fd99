package domain

import (
	"github.com/shopspring/decimal"
)

type SearchStatus string

const (
	// SearchSuccess: a single block produced the full target count of
	// validated, price-consistent sources.
	SearchSuccess SearchStatus = "success"
	// SearchPartial: some sources validated but fewer than the target;
	// the survey needs manual review downstream.
	SearchPartial SearchStatus = "partial"
	// SearchFailure: zero sources validated.
	SearchFailure SearchStatus = "failure"
	// SearchCancelled: the run was cancelled between validations; accumulated
	// sources are discarded.
	SearchCancelled SearchStatus = "cancelled"
)

// AcceptedSource is one validated price source reported to the caller.
type AcceptedSource struct {
	Title        string          `json:"title"`
	Domain       string          `json:"domain"`
	URL          string          `json:"url"`
	SettledPrice decimal.Decimal `json:"settled_price"`
	Evidence     string          `json:"evidence,omitempty"`
}

// Diagnostics describes how hard the scheduler had to work for the outcome.
type Diagnostics struct {
	BlocksTried      int                `json:"blocks_tried"`
	EscalationsUsed  int                `json:"escalations_used"`
	FailuresByReason map[FailReason]int `json:"failures_by_reason,omitempty"`
}

// Outcome is the terminal result of one price search. It is the only surface
// the surrounding system (persistence, API, reporting) consumes.
type Outcome struct {
	Status       SearchStatus
	Accepted     []AcceptedSource
	Mean         decimal.Decimal
	Min          decimal.Decimal
	Max          decimal.Decimal
	VariationPct decimal.Decimal
	Diagnostics  Diagnostics
}
